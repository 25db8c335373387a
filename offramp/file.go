package offramp

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
)

// FileType is the registry name of the file sink.
const FileType = "file"

// FileConfig holds configuration for the file sink
type FileConfig struct {
	Path string `yaml:"path"`
	// Append keeps existing content; otherwise the file is truncated on open.
	Append bool `yaml:"append"`
	// BufferSize is the number of records written before a flush.
	BufferSize int `yaml:"buffer_size"`
	// FlushInterval bounds how long a record stays buffered.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DefaultFileConfig returns the file sink defaults
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Append:        true,
		BufferSize:    100,
		FlushInterval: time.Second,
	}
}

// Validate checks the configuration
func (c FileConfig) Validate() error {
	if c.Path == "" {
		return errors.WrapInvalid(fmt.Errorf("path is required: %w", errors.ErrConfig),
			"FileConfig", "Validate", "path validation")
	}
	if c.BufferSize < 0 {
		return errors.WrapInvalid(fmt.Errorf("buffer_size cannot be negative: %w", errors.ErrConfig),
			"FileConfig", "Validate", "buffer validation")
	}
	if c.FlushInterval < 0 {
		return errors.WrapInvalid(fmt.Errorf("flush_interval cannot be negative: %w", errors.ErrConfig),
			"FileConfig", "Validate", "interval validation")
	}
	return nil
}

// File appends one record per line to a file
type File struct {
	cfg    FileConfig
	logger *slog.Logger

	mu       sync.Mutex
	file     *os.File
	w        *bufio.Writer
	pending  int
	written  int64
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewFile creates a file sink; the file is opened by Open
func NewFile(cfg FileConfig, logger *slog.Logger) (*File, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default().With("component", "file-offramp")
	}
	return &File{cfg: cfg, logger: logger}, nil
}

func newFileFromConfig(oc config.OfframpConfig, deps Deps) (Sink, error) {
	cfg := DefaultFileConfig()
	if err := config.DecodeStrict(oc.Config, &cfg); err != nil {
		return nil, err
	}
	return NewFile(cfg, deps.Logger)
}

// Open creates the parent directory and opens the file
func (f *File) Open(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.file != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "File", "Open", "check open state")
	}
	if err := os.MkdirAll(filepath.Dir(f.cfg.Path), 0o755); err != nil {
		return errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "File", "Open", "create output directory")
	}

	flags := os.O_CREATE | os.O_WRONLY
	if f.cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	file, err := os.OpenFile(f.cfg.Path, flags, 0o644)
	if err != nil {
		return errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "File", "Open", "open output file")
	}

	f.file = file
	f.w = bufio.NewWriter(file)
	if f.cfg.FlushInterval > 0 {
		f.shutdown = make(chan struct{})
		f.wg.Add(1)
		go f.flushLoop(f.shutdown)
	}
	f.logger.Info("File offramp opened", "path", f.cfg.Path, "append", f.cfg.Append)
	return nil
}

// Write buffers one record, flushing once buffer_size records are pending
func (f *File) Write(_ event.Event, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.w == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "File", "Write", "write before open")
	}
	_, _ = f.w.Write(data)
	if err := f.w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "File", "Write", "write record")
	}
	f.pending++
	f.written++
	if f.pending >= f.cfg.BufferSize {
		return f.flushLocked()
	}
	return nil
}

// Flush writes buffered records to the file
func (f *File) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flushLocked()
}

func (f *File) flushLocked() error {
	if f.w == nil || f.pending == 0 {
		return nil
	}
	f.pending = 0
	if err := f.w.Flush(); err != nil {
		return errors.Wrap(err, "File", "Flush", "flush records")
	}
	return nil
}

func (f *File) flushLoop(shutdown <-chan struct{}) {
	defer f.wg.Done()
	ticker := time.NewTicker(f.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			if err := f.Flush(); err != nil {
				f.logger.Error("Periodic flush failed", "path", f.cfg.Path, "error", err)
			}
		}
	}
}

// Written returns the number of records accepted
func (f *File) Written() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written
}

// Close flushes and closes the file. Idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	shutdown := f.shutdown
	f.shutdown = nil
	f.mu.Unlock()
	if shutdown != nil {
		close(shutdown)
		f.wg.Wait()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	flushErr := f.flushLocked()
	closeErr := f.file.Close()
	f.file = nil
	f.w = nil
	if closeErr != nil {
		closeErr = errors.Wrap(closeErr, "File", "Close", "close output file")
	}
	return errors.Join(flushErr, closeErr)
}
