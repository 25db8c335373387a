package offramp

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
)

// StdoutType is the registry name of the stdout sink.
const StdoutType = "stdout"

// StdoutConfig configures the stdout sink
type StdoutConfig struct {
	// Prefix is written before every record.
	Prefix string `yaml:"prefix"`
}

// Writer writes one record per line to an io.Writer.
type Writer struct {
	prefix string

	mu sync.Mutex
	w  *bufio.Writer
}

// NewWriter creates a sink writing to w
func NewWriter(w io.Writer, prefix string) *Writer {
	return &Writer{prefix: prefix, w: bufio.NewWriter(w)}
}

func newStdoutFromConfig(oc config.OfframpConfig, _ Deps) (Sink, error) {
	var cfg StdoutConfig
	if err := config.DecodeStrict(oc.Config, &cfg); err != nil {
		return nil, err
	}
	return NewWriter(os.Stdout, cfg.Prefix), nil
}

// Open implements Sink
func (s *Writer) Open(context.Context) error {
	return nil
}

// Write implements Sink
func (s *Writer) Write(_ event.Event, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.prefix != "" {
		_, _ = s.w.WriteString(s.prefix)
	}
	_, _ = s.w.Write(data)
	if err := s.w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "Writer", "Write", "write record")
	}
	// Interactive output: records appear as they arrive.
	return s.flushLocked()
}

// Flush implements Flusher
func (s *Writer) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Writer) flushLocked() error {
	if err := s.w.Flush(); err != nil {
		return errors.Wrap(err, "Writer", "Flush", "flush")
	}
	return nil
}

// Close implements Sink
func (s *Writer) Close() error {
	return s.Flush()
}
