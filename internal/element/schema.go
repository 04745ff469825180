package element

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// InferSchema builds a minimal structural JSON-Schema document from a
// sample value. This is intentionally small: spec.md treats "JSON-Schema
// inference from sample values" as an external collaborator, so this
// stays a primitive-type-table lookup rather than a full inference
// library, with objects and arrays given a structural shape good enough
// to round-trip.
func InferSchema(value any) map[string]any {
	switch v := value.(type) {
	case nil:
		return map[string]any{"type": "null"}
	case bool:
		return map[string]any{"type": "boolean"}
	case string:
		return map[string]any{"type": "string"}
	case float64, int, int64:
		return map[string]any{"type": "number"}
	case map[string]any:
		props := make(map[string]any, len(v))
		for k, child := range v {
			props[k] = InferSchema(child)
		}
		return map[string]any{"type": "object", "properties": props}
	case []any:
		var items any = map[string]any{}
		if len(v) > 0 {
			items = InferSchema(v[0])
		}
		return map[string]any{"type": "array", "items": items}
	default:
		return map[string]any{"type": "string"}
	}
}

// compileSchema compiles a decoded JSON-Schema document for validation.
func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("element: marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	const resourceName = "vbus-attribute-schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("element: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, fmt.Errorf("element: compile schema: %w", err)
	}
	return compiled, nil
}

// ValidateAgainstSchema reports whether value satisfies schema,
// returning ErrValidation (wrapped with the underlying cause) if not.
func ValidateAgainstSchema(schema map[string]any, value any) error {
	if schema == nil {
		return nil
	}
	compiled, err := compileSchema(schema)
	if err != nil {
		return err
	}
	if err := compiled.Validate(value); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return nil
}
