package element

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Attribute is a leaf data slot: a value, the schema it must validate
// against, and optional get/set callbacks. ID is an internal identity
// (not the path segment, which is the parent's map key for this
// element) used to correlate an attribute's reads and writes in traces.
type Attribute struct {
	ID     string
	schema map[string]any
	value  any
	hasVal bool
	onSet  func(ctx context.Context, value any) error
	onGet  func(ctx context.Context) (any, error)

	// onChanged is wired by the owning Tree so that a successful set —
	// whether from the local API or from a remote request — publishes
	// the value.set notification. It is nil for detached attributes
	// used in tests.
	onChanged func(newValue any)
}

// NewAttribute creates an attribute. If schema is nil and value is
// present, the schema is inferred from value. onSet/onGet may be nil.
func NewAttribute(value any, hasValue bool, schema map[string]any, onSet func(context.Context, any) error, onGet func(context.Context) (any, error)) *Attribute {
	if schema == nil && hasValue {
		schema = InferSchema(value)
	}
	return &Attribute{
		ID:     uuid.New().String(),
		schema: schema,
		value:  value,
		hasVal: hasValue,
		onSet:  onSet,
		onGet:  onGet,
	}
}

// SetOnChanged wires the callback invoked after a successful value
// change. Used by Tree to publish the value.set notification.
func (a *Attribute) SetOnChanged(fn func(newValue any)) { a.onChanged = fn }

func (a *Attribute) ToRepr() any {
	repr := map[string]any{"schema": a.schema}
	if a.hasVal {
		repr["value"] = a.value
	}
	return repr
}

func (a *Attribute) SearchPath(parts []string) (Element, bool) {
	switch len(parts) {
	case 0:
		return a, true
	case 1:
		if parts[0] == "value" {
			return a, true
		}
	}
	return nil, false
}

// HandleGet implements the value-read variants: when parts ends with
// "value", it honors the in_cache flag and falls back to on_get;
// otherwise it returns the full representation like any other element.
func (a *Attribute) HandleGet(ctx context.Context, data any, parts []string) (any, error) {
	if len(parts) == 0 || parts[len(parts)-1] != "value" {
		return a.ToRepr(), nil
	}

	inCache := false
	if m, ok := data.(map[string]any); ok {
		if v, ok := m["in_cache"].(bool); ok {
			inCache = v
		}
	}

	if inCache || a.onGet == nil {
		if !a.hasVal {
			return nil, nil
		}
		return a.value, nil
	}

	v, err := a.onGet(ctx)
	if err != nil {
		return nil, err
	}
	a.value = v
	a.hasVal = true
	return v, nil
}

// HandleSet validates the new value against the schema, applies it, and
// invokes on_set and on_changed.
func (a *Attribute) HandleSet(ctx context.Context, data any, _ []string) (any, error) {
	if err := ValidateAgainstSchema(a.schema, data); err != nil {
		return nil, fmt.Errorf("attribute %s: %w", a.ID, err)
	}

	if a.onSet != nil {
		if err := a.onSet(ctx, data); err != nil {
			return nil, err
		}
	}

	a.value = data
	a.hasVal = true
	if a.onChanged != nil {
		a.onChanged(data)
	}
	return nil, nil
}

// Value returns the cached value and whether one is set.
func (a *Attribute) Value() (any, bool) { return a.value, a.hasVal }

// Schema returns the attribute's JSON-Schema document.
func (a *Attribute) Schema() map[string]any { return a.schema }
