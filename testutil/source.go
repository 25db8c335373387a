package testutil

import (
	"context"
	"sync"
)

// FeedSource is an onramp source delivering whatever is written to Feed.
type FeedSource struct {
	Feed chan []byte
	// StartErr, when set, is returned by Start.
	StartErr error

	mu      sync.Mutex
	started bool
	stopped bool
	done    chan struct{}
}

// NewFeedSource creates a source whose Feed holds up to buffer messages
func NewFeedSource(buffer int) *FeedSource {
	return &FeedSource{Feed: make(chan []byte, buffer)}
}

// Start forwards Feed to out until Stop
func (s *FeedSource) Start(_ context.Context, out chan<- []byte) error {
	if s.StartErr != nil {
		return s.StartErr
	}
	s.mu.Lock()
	s.started = true
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		for {
			select {
			case data := <-s.Feed:
				select {
				case out <- data:
				case <-done:
					return
				}
			case <-done:
				return
			}
		}
	}()
	return nil
}

// Stop ends forwarding. Idempotent.
func (s *FeedSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped && s.done != nil {
		close(s.done)
	}
	s.stopped = true
	return nil
}

// Started reports whether Start succeeded
func (s *FeedSource) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Stopped reports whether Stop was called
func (s *FeedSource) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
