package codec

import (
	"gopkg.in/yaml.v3"

	"github.com/jaysonsantos/tremor-runtime/value"
)

// YAML decodes one YAML document per buffer.
type YAML struct{}

// NewYAML creates a YAML codec
func NewYAML() *YAML {
	return &YAML{}
}

// Name returns the codec name
func (c *YAML) Name() string {
	return "yaml"
}

// Decode parses a YAML document
func (c *YAML) Decode(data []byte, _ uint64) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, decodeError(err, "YAML")
	}
	return value.Normalize(v), nil
}

// Encode serializes v as a YAML document
func (c *YAML) Encode(v any) ([]byte, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, encodeError(err, "YAML")
	}
	return data, nil
}
