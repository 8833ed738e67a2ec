package dataformat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/research-virtualfortknox/msb-client-websocket-go/errors"
)

// ComplexType is a user-built named object type. Properties are added one by
// one; RequiredSubtypes records, in declaration order, every other complex
// type this one references so the full definition set can be assembled.
type ComplexType struct {
	Name             string
	Properties       map[string]*Descriptor
	RequiredSubtypes []string
}

func (ct *ComplexType) definition() *Definition {
	def := &Definition{Type: TypeObject, Properties: make(map[string]*Descriptor, len(ct.Properties))}
	for k, v := range ct.Properties {
		def.Properties[k] = v.Clone()
	}
	return def
}

func (ct *ComplexType) requires(name string) bool {
	for _, n := range ct.RequiredSubtypes {
		if n == name {
			return true
		}
	}
	return false
}

// Builder turns type declarations into DataFormats and owns the complex
// type templates declared by the caller.
type Builder struct {
	mu        sync.RWMutex
	templates map[string]*ComplexType
	logger    *slog.Logger
}

// NewBuilder creates an empty builder.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		templates: make(map[string]*ComplexType),
		logger:    logger,
	}
}

// CreateComplexType registers a new complex type with no properties.
// Creating an existing name resets it.
func (b *Builder) CreateComplexType(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.templates[name] = &ComplexType{
		Name:       name,
		Properties: make(map[string]*Descriptor),
	}
}

// HasComplexType reports whether name is a declared complex type.
func (b *Builder) HasComplexType(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.templates[name]
	return ok
}

// ComplexType returns a copy of the named template.
func (b *Builder) ComplexType(name string) (ComplexType, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ct, ok := b.templates[name]
	if !ok {
		return ComplexType{}, false
	}
	props := make(map[string]*Descriptor, len(ct.Properties))
	for k, v := range ct.Properties {
		props[k] = v.Clone()
	}
	return ComplexType{
		Name:             ct.Name,
		Properties:       props,
		RequiredSubtypes: append([]string(nil), ct.RequiredSubtypes...),
	}, true
}

// AddProperty adds a property to the complex type typeName. propertyType is
// either a simple type keyword or the name of another complex type, in which
// case the property becomes a $ref and the dependency is recorded.
func (b *Builder) AddProperty(typeName, property, propertyType string, isArray bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ct, ok := b.templates[typeName]
	if !ok {
		return errors.Invalidf(errors.ErrUnknownDataFormat, "Builder", "AddProperty",
			"complex type %q not created", typeName)
	}

	if _, isComplex := b.templates[propertyType]; isComplex {
		if !ct.requires(propertyType) {
			ct.RequiredSubtypes = append(ct.RequiredSubtypes, propertyType)
		}
		ref := &Descriptor{Ref: RefPrefix + propertyType}
		if isArray {
			ct.Properties[property] = &Descriptor{Type: TypeArray, Items: ref}
		} else {
			ct.Properties[property] = ref
		}
		return nil
	}

	d := b.MapPrimitive(propertyType)
	if d == nil {
		return errors.Invalidf(errors.ErrInvalidDataFormat, "Builder", "AddProperty",
			"property %q of %q has no type", property, typeName)
	}
	if isArray {
		d = &Descriptor{Type: TypeArray, Items: d}
	}
	ct.Properties[property] = d
	return nil
}

// Build creates the DataFormat for a declared payload type.
//
//   - "" means no payload and yields nil
//   - the name of a complex type yields an object (or array) $ref with all
//     required definitions flattened next to the root
//   - a JSON object string is used verbatim as the root; isArray is ignored
//   - anything else is a simple type keyword, array-wrapped when isArray
func (b *Builder) Build(typeName string, isArray bool) (*DataFormat, error) {
	if typeName == "" {
		return nil, nil
	}

	b.mu.RLock()
	_, isComplex := b.templates[typeName]
	b.mu.RUnlock()

	if isComplex {
		return b.buildComplex(typeName, isArray), nil
	}

	if trimmed := strings.TrimSpace(typeName); strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		return b.BuildLiteral(json.RawMessage(trimmed))
	}

	root := b.MapPrimitive(typeName)
	if isArray {
		root = &Descriptor{Type: TypeArray, Items: root}
	}
	return &DataFormat{DataObject: root, Definitions: map[string]*Definition{}}, nil
}

// BuildLiteral uses a caller-supplied JSON schema as the root descriptor.
func (b *Builder) BuildLiteral(raw json.RawMessage) (*DataFormat, error) {
	var root Descriptor
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidDataFormat, err),
			"Builder", "BuildLiteral", "parse literal schema")
	}
	return &DataFormat{
		DataObject:  &root,
		Definitions: map[string]*Definition{},
		literal:     append(json.RawMessage(nil), raw...),
	}, nil
}

func (b *Builder) buildComplex(typeName string, isArray bool) *DataFormat {
	b.mu.RLock()
	defer b.mu.RUnlock()

	df := &DataFormat{Definitions: make(map[string]*Definition)}
	b.flatten(typeName, df.Definitions, make(map[string]struct{}))

	ref := RefPrefix + typeName
	if isArray {
		df.DataObject = &Descriptor{Type: TypeArray, Items: &Descriptor{Ref: ref}}
	} else {
		df.DataObject = &Descriptor{Type: TypeObject, Ref: ref}
	}
	return df
}

// flatten places name and everything it requires into defs. visited guards
// against cyclic templates; a name is marked before its dependencies are
// walked. Caller holds b.mu.
func (b *Builder) flatten(name string, defs map[string]*Definition, visited map[string]struct{}) {
	if _, seen := visited[name]; seen {
		return
	}
	visited[name] = struct{}{}

	ct, ok := b.templates[name]
	if !ok {
		return
	}
	defs[name] = ct.definition()
	for _, dep := range ct.RequiredSubtypes {
		b.flatten(dep, defs, visited)
	}
}

// MapPrimitive maps a simple type keyword like the package-level
// MapPrimitive and logs a warning when a generic keyword is widened.
func (b *Builder) MapPrimitive(keyword string) *Descriptor {
	if target, ok := WidenedTo(keyword); ok {
		b.logger.Warn("Generic data type widened", "keyword", keyword, "data_type", target)
	}
	return MapPrimitive(keyword)
}
