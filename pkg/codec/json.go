package codec

import (
	"encoding/json"
)

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
// With T = any, objects decode to map[string]any and arrays to []any, which is
// the shape the router's object and array filters inspect.
type JSONCodec[T any] struct{}

// NewJSONCodec creates a new JSONCodec instance for the decoded type T.
//
// Example:
//
//	srv.Use(codec.Parser(codec.NewJSONCodec[any]()))
func NewJSONCodec[T any]() *JSONCodec[T] {
	return &JSONCodec[T]{}
}

// NewRequest creates a new zero-value instance of T.
func (c *JSONCodec[T]) NewRequest() T {
	var data T
	return data
}

// Decode unmarshals a JSON line into T.
// If the JSON is malformed or doesn't match T, the zero value of T is returned with the error.
func (c *JSONCodec[T]) Decode(line string) (T, error) {
	data := c.NewRequest()
	if err := json.Unmarshal([]byte(line), &data); err != nil {
		var zero T
		return zero, err
	}
	return data, nil
}

// Encode marshals v to compact JSON. Newlines inside strings are escaped.
func (c *JSONCodec[T]) Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
