// Package codec turns raw buffers into structured values and back.
//
// A codec is stateless from the caller's point of view: Decode receives one
// framed buffer (the output of the preprocessor chain) together with the
// ingestion timestamp and returns a canonical value (see package value), or
// nil when the buffer carries nothing. Encode is the reverse, used by
// offramps.
//
// # Registry
//
// Codecs are looked up by name:
//
//	c, err := codec.Lookup("json")
//	if err != nil {
//	    // errors.Is(err, errors.ErrUnknownArtefact)
//	}
//	v, err := c.Decode([]byte(`{"snot":"badger"}`), ingestNS)
//
// Built-in codecs are json, msgpack, yaml, string and null. Additional codecs
// can be added with Register.
//
// # Errors
//
// Decode failures are invalid-class errors wrapping errors.ErrDecode; encode
// failures wrap errors.ErrEncode. Both concern a single value and never stop
// the caller.
package codec
