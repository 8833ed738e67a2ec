// Package errors provides standardized error handling for the MSB client.
//
// # Overview
//
// Errors are split into three classes: Transient (transport trouble that a
// reconnect resolves), Invalid (bad declarations or input, surfaced to the
// caller) and Fatal (unusable configuration).
//
// Declaration errors are always returned to the caller as Invalid:
//
//	if err := c.AddEvent("E1", "Event 1", "desc", "string", "LOW", false); err != nil {
//	    if errors.Is(err, msberrors.ErrDuplicateID) {
//	        // id already declared
//	    }
//	}
//
// Transport errors never reach a publish caller; the client logs them,
// closes the connection and lets the reconnect policy take over.
//
// # Error Wrapping Pattern
//
// All wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrappers set the class:
//
//	errors.WrapTransient(err, "Component", "Method", "action")
//	errors.WrapInvalid(err, "Component", "Method", "action")
//	errors.WrapFatal(err, "Component", "Method", "action")
//
// Sentinel variables (ErrDuplicateID, ErrInvalidDataFormat, ErrUnknownResponseEvent,
// ErrInvalidParameterValue, ErrUnknownParameter, ErrNotRegistered, ...) stay
// reachable through errors.Is on every wrapped error.
package errors
