package element

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Method is an RPC endpoint: a Go function introspected once at
// construction into a params schema and a returns schema, per
// spec.md §4.2's "Method introspection" rule. A leading
// context.Context parameter and a trailing error result are
// recognized as the Go idiom for "invocation path" and "failure" and
// excluded from the schema, the way the original excludes "self" and a
// bare None return.
type Method struct {
	fn          reflect.Value
	paramTypes  []reflect.Type
	hasCtx      bool
	hasErr      bool
	hasValueOut bool

	paramsSchema  map[string]any
	returnsSchema map[string]any
}

// NewMethod introspects fn and builds its schemas. fn must be a Go
// function value. It fails with ErrUnsupportedParamType if a parameter
// or the return type has no primitive JSON-Schema mapping. A function
// declaring no value result (beyond an optional trailing error) is
// accepted, producing returns:{"type":"null"} — the direct analogue of
// the original's explicit "-> None" annotation.
func NewMethod(fn any) (*Method, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("element: NewMethod requires a function, got %s", t.Kind())
	}

	m := &Method{fn: v}

	start := 0
	if t.NumIn() > 0 && t.In(0).Implements(contextType) {
		m.hasCtx = true
		start = 1
	}

	items := make([]any, 0, t.NumIn()-start)
	lastParam := t.NumIn() - 1
	for i := start; i < t.NumIn(); i++ {
		if t.IsVariadic() && i == lastParam {
			continue // variadic parameters are skipped, per spec.md §4.2
		}
		paramType := t.In(i)
		jsonType, ok := goTypeToJSONSchema(paramType)
		if !ok {
			return nil, fmt.Errorf("element: parameter %d of type %s: %w", i-start, paramType, ErrUnsupportedParamType)
		}
		m.paramTypes = append(m.paramTypes, paramType)
		items = append(items, map[string]any{"type": jsonType, "title": fmt.Sprintf("arg%d", i-start)})
	}
	m.paramsSchema = map[string]any{"type": "array", "items": items}

	numOut := t.NumOut()
	if numOut > 0 && t.Out(numOut-1) == errorType {
		m.hasErr = true
		numOut--
	}
	switch {
	case numOut == 0:
		// No declared value result, the direct Go analogue of the
		// original's explicit "-> None" annotation.
		m.returnsSchema = map[string]any{"type": "null"}
	case numOut == 1:
		jsonType, ok := goTypeToJSONSchema(t.Out(0))
		if !ok {
			return nil, fmt.Errorf("element: return type %s: %w", t.Out(0), ErrUnsupportedParamType)
		}
		m.returnsSchema = map[string]any{"type": jsonType}
		m.hasValueOut = true
	default:
		return nil, fmt.Errorf("element: methods may declare at most one value result plus an error")
	}

	return m, nil
}

func goTypeToJSONSchema(t reflect.Type) (string, bool) {
	switch t.Kind() {
	case reflect.String:
		return "string", true
	case reflect.Bool:
		return "boolean", true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer", true
	case reflect.Float32, reflect.Float64:
		return "number", true
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return "null", true
		}
	}
	return "", false
}

func (m *Method) ToRepr() any {
	return map[string]any{
		"params":  m.paramsSchema,
		"returns": m.returnsSchema,
	}
}

func (m *Method) SearchPath(parts []string) (Element, bool) {
	if len(parts) == 0 {
		return m, true
	}
	return nil, false
}

func (m *Method) HandleGet(_ context.Context, _ any, _ []string) (any, error) {
	return m.ToRepr(), nil
}

// HandleSet invokes the underlying callable. data is unpacked as a
// list payload; a non-list (or absent) payload invokes with zero
// arguments.
func (m *Method) HandleSet(ctx context.Context, data any, _ []string) (any, error) {
	argsList, _ := data.([]any)

	callArgs := make([]reflect.Value, 0, len(m.paramTypes)+1)
	if m.hasCtx {
		callArgs = append(callArgs, reflect.ValueOf(ctx))
	}
	for i, paramType := range m.paramTypes {
		var raw any
		if i < len(argsList) {
			raw = argsList[i]
		}
		converted, err := convertJSONValue(raw, paramType)
		if err != nil {
			return nil, fmt.Errorf("element: argument %d: %w", i, err)
		}
		callArgs = append(callArgs, converted)
	}

	results := m.fn.Call(callArgs)

	var callErr error
	if m.hasErr {
		errOut := results[len(results)-1]
		if !errOut.IsNil() {
			callErr = errOut.Interface().(error)
		}
		results = results[:len(results)-1]
	}
	if callErr != nil {
		return nil, callErr
	}
	if m.hasValueOut && len(results) == 1 {
		return results[0].Interface(), nil
	}
	return nil, nil
}

func convertJSONValue(raw any, target reflect.Type) (reflect.Value, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return reflect.Value{}, err
	}
	out := reflect.New(target)
	if err := json.Unmarshal(data, out.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return out.Elem(), nil
}
