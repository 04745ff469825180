package element

import "errors"

// Sentinel errors for the taxonomy in the error handling design: every
// wire-visible failure and every local-only failure is one of these,
// wrapped with fmt.Errorf("...: %w", err) at the call site that adds
// context.
var (
	// ErrPathNotFound is returned when a get/set addresses a path that
	// does not resolve to any element. It becomes {code:404,...} on
	// the wire.
	ErrPathNotFound = errors.New("not found")

	// ErrValidation is returned when an attribute set value does not
	// validate against its schema. It never reaches the bus: it is
	// raised synchronously to the local caller of Tree.Set or
	// AttributeProxy.Set.
	ErrValidation = errors.New("validation failed")

	// ErrUnsupportedParamType is returned by method introspection when
	// a callback parameter's type has no primitive JSON-Schema
	// mapping.
	ErrUnsupportedParamType = errors.New("unsupported parameter type")
)
