package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

// Codec converts between raw buffers and canonical values.
type Codec interface {
	// Decode returns the value held by data, or nil when data carries none.
	Decode(data []byte, ingestNS uint64) (any, error)
	// Encode serializes a canonical value.
	Encode(v any) ([]byte, error)
	// Name returns the registry name.
	Name() string
}

// Constructor builds a fresh codec instance.
type Constructor func() Codec

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{
		"json":    func() Codec { return NewJSON() },
		"msgpack": func() Codec { return NewMsgpack() },
		"yaml":    func() Codec { return NewYAML() },
		"string":  func() Codec { return NewString() },
		"null":    func() Codec { return NewNull() },
	}
)

// Register adds or replaces a codec constructor.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// Lookup returns a new instance of the named codec.
func Lookup(name string) (Codec, error) {
	mu.RLock()
	ctor, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.WrapFatal(
			fmt.Errorf("codec %q: %w", name, errors.ErrUnknownArtefact),
			"codec", "Lookup", "codec resolution")
	}
	return ctor(), nil
}

// Names lists registered codecs in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeError(err error, component string) error {
	return errors.WrapInvalid(errors.Mark(err, errors.ErrDecode), component, "Decode", "decoding")
}

func encodeError(err error, component string) error {
	return errors.WrapInvalid(errors.Mark(err, errors.ErrEncode), component, "Encode", "encoding")
}
