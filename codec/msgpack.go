package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/jaysonsantos/tremor-runtime/value"
)

// Msgpack decodes MessagePack buffers.
type Msgpack struct{}

// NewMsgpack creates a MessagePack codec
func NewMsgpack() *Msgpack {
	return &Msgpack{}
}

// Name returns the codec name
func (c *Msgpack) Name() string {
	return "msgpack"
}

// Decode parses a single MessagePack value
func (c *Msgpack) Decode(data []byte, _ uint64) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))

	// bin decodes as []byte and str as string; Normalize widens the sized integers.
	v, err := dec.DecodeInterface()
	if err != nil {
		return nil, decodeError(err, "Msgpack")
	}
	return value.Normalize(v), nil
}

// Encode serializes v with sorted map keys
func (c *Msgpack) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, encodeError(err, "Msgpack")
	}
	return buf.Bytes(), nil
}
