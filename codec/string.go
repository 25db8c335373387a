package codec

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

// String passes UTF-8 text through as a string value. Non-string values are
// encoded as JSON.
type String struct{}

// NewString creates a string codec
func NewString() *String {
	return &String{}
}

// Name returns the codec name
func (c *String) Name() string {
	return "string"
}

// Decode returns data as a string; invalid UTF-8 is a decode error
func (c *String) Decode(data []byte, _ uint64) (any, error) {
	if !utf8.Valid(data) {
		return nil, decodeError(errors.ErrInvalidData, "String")
	}
	return string(data), nil
}

// Encode writes strings and byte slices verbatim
func (c *String) Encode(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, encodeError(err, "String")
	}
	return data, nil
}
