// Package selfdescription keeps the declarations an MSB client registers
// with the broker and renders them as the self-description document.
//
// Events get a 1-based @id in declaration order; functions reference their
// response events by that id. Declarations either succeed completely or leave
// the registry untouched. Every exported method is safe for concurrent use.
package selfdescription
