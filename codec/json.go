package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/value"
)

// JSON decodes one JSON document per buffer. Numbers keep integer precision.
type JSON struct{}

// NewJSON creates a JSON codec
func NewJSON() *JSON {
	return &JSON{}
}

// Name returns the codec name
func (c *JSON) Name() string {
	return "json"
}

// Decode parses a single JSON document
func (c *JSON) Decode(data []byte, _ uint64) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, decodeError(errors.ErrInvalidData, "JSON")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, decodeError(err, "JSON")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, decodeError(fmt.Errorf("trailing data after document"), "JSON")
	}

	return value.Normalize(v), nil
}

// Encode serializes v as compact JSON
func (c *JSON) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, encodeError(err, "JSON")
	}
	return data, nil
}
