package codec

// Null discards everything: Decode yields no value and Encode yields no bytes.
type Null struct{}

// NewNull creates a null codec
func NewNull() *Null {
	return &Null{}
}

// Name returns the codec name
func (c *Null) Name() string {
	return "null"
}

// Decode always returns nil
func (c *Null) Decode(_ []byte, _ uint64) (any, error) {
	return nil, nil
}

// Encode always returns an empty buffer
func (c *Null) Encode(_ any) ([]byte, error) {
	return []byte{}, nil
}
