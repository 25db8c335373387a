package testutil

import (
	"context"
	"sync"

	"github.com/jaysonsantos/tremor-runtime/event"
)

// MemorySink is an offramp sink recording every encoded record.
type MemorySink struct {
	// WriteErr, when set, is returned by Write and nothing is recorded.
	WriteErr error

	mu      sync.Mutex
	records []string
	events  []event.Event
	opened  bool
	closed  bool
	flushes int
}

// NewMemorySink creates an empty sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return nil
}

func (s *MemorySink) Write(ev event.Event, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	s.records = append(s.records, string(data))
	s.events = append(s.events, ev)
	return nil
}

func (s *MemorySink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Records returns a copy of the encoded records in write order
func (s *MemorySink) Records() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.records...)
}

// Events returns a copy of the written events in write order
func (s *MemorySink) Events() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event.Event(nil), s.events...)
}

// Len returns the number of records written
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Flushes returns how often Flush was called
func (s *MemorySink) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Opened reports whether Open was called
func (s *MemorySink) Opened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// Closed reports whether Close was called
func (s *MemorySink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
