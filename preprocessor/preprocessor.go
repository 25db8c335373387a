// Package preprocessor frames and transforms raw buffers before they reach a
// codec.
//
// A preprocessor maps one input buffer to zero or more output buffers.
// Framing preprocessors (lines, length-prefixed) keep partial frames between
// calls, so every connection gets its own instance from Lookup.
package preprocessor

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

// Preprocessor transforms one raw buffer into zero or more buffers.
type Preprocessor interface {
	Process(ingestNS uint64, data []byte) ([][]byte, error)
	Name() string
}

// Constructor builds a fresh preprocessor instance.
type Constructor func() Preprocessor

var (
	mu       sync.RWMutex
	registry = map[string]Constructor{
		"lines":           func() Preprocessor { return NewLines() },
		"base64":          func() Preprocessor { return NewBase64() },
		"gzip":            func() Preprocessor { return NewGzip() },
		"zlib":            func() Preprocessor { return NewZlib() },
		"zstd":            func() Preprocessor { return NewZstd() },
		"snappy":          func() Preprocessor { return NewSnappy() },
		"lz4":             func() Preprocessor { return NewLZ4() },
		"decompress":      func() Preprocessor { return NewDecompress() },
		"length-prefixed": func() Preprocessor { return NewLengthPrefixed() },
		"remove-empty":    func() Preprocessor { return NewRemoveEmpty() },
	}
)

// Register adds or replaces a preprocessor constructor.
func Register(name string, ctor Constructor) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = ctor
}

// Lookup returns a new instance of the named preprocessor.
func Lookup(name string) (Preprocessor, error) {
	mu.RLock()
	ctor, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.WrapFatal(
			fmt.Errorf("preprocessor %q: %w", name, errors.ErrUnknownArtefact),
			"preprocessor", "Lookup", "preprocessor resolution")
	}
	return ctor(), nil
}

// Names lists registered preprocessors in sorted order.
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

// Chain applies preprocessors in order. Every buffer produced by one stage is
// fed to the next.
type Chain struct {
	stages []Preprocessor
}

// NewChain resolves names into a chain of fresh instances.
func NewChain(names ...string) (*Chain, error) {
	stages := make([]Preprocessor, 0, len(names))
	for _, name := range names {
		pp, err := Lookup(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, pp)
	}
	return &Chain{stages: stages}, nil
}

// ChainOf builds a chain from existing instances.
func ChainOf(stages ...Preprocessor) *Chain {
	return &Chain{stages: stages}
}

// Len returns the number of stages.
func (c *Chain) Len() int {
	return len(c.stages)
}

// Process runs data through every stage. An empty chain passes data through
// unchanged. Any stage failure aborts the whole input buffer: nothing is
// returned and the error wraps errors.ErrPreprocess.
func (c *Chain) Process(ingestNS uint64, data []byte) ([][]byte, error) {
	bufs := [][]byte{data}
	for _, pp := range c.stages {
		next := make([][]byte, 0, len(bufs))
		for _, b := range bufs {
			out, err := pp.Process(ingestNS, b)
			if err != nil {
				return nil, errors.WrapInvalid(errors.Mark(err, errors.ErrPreprocess),
					"Chain", "Process", fmt.Sprintf("preprocessor %s", pp.Name()))
			}
			next = append(next, out...)
		}
		bufs = next
	}
	return bufs, nil
}

// RemoveEmpty drops zero-length buffers.
type RemoveEmpty struct{}

// NewRemoveEmpty creates a remove-empty preprocessor
func NewRemoveEmpty() *RemoveEmpty {
	return &RemoveEmpty{}
}

// Name returns the preprocessor name
func (p *RemoveEmpty) Name() string { return "remove-empty" }

// Process returns data unless it is empty
func (p *RemoveEmpty) Process(_ uint64, data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return [][]byte{data}, nil
}
