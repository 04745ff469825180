package wireutil

import "encoding/json"

// Encode marshals v to its wire payload. A nil v produces an empty
// payload, matching the convention that an absent value and an empty
// payload are interchangeable.
func Encode(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Decode unmarshals a wire payload into v. An empty payload is treated
// as "no value" and leaves v untouched.
func Decode(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// DecodeAny decodes a wire payload into a generic any, returning nil for
// an empty payload instead of an error.
func DecodeAny(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeMap decodes a wire payload expected to be a JSON object.
func DecodeMap(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
