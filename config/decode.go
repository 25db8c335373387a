package config

import (
	"bytes"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

// DecodeStrict decodes a per-type config section into out. Unknown keys are
// rejected. An absent section leaves out untouched so callers can pre-fill
// defaults.
func DecodeStrict(node yaml.Node, out any) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}

	data, err := yaml.Marshal(&node)
	if err != nil {
		return errors.WrapInvalid(errors.Mark(err, errors.ErrConfig), "config", "DecodeStrict", "re-encode section")
	}
	return Unmarshal(data, out)
}

// Unmarshal decodes a YAML document strictly into out.
func Unmarshal(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err != io.EOF {
		return errors.WrapInvalid(errors.Mark(err, errors.ErrConfig), "config", "Unmarshal", "yaml decoding")
	}
	return nil
}
