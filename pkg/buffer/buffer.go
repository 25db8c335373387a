package buffer

import (
	"sync"
	"sync/atomic"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

// OverflowPolicy defines what a full buffer drops.
type OverflowPolicy int

const (
	// DropOldest removes the oldest item to make room for new items.
	DropOldest OverflowPolicy = iota
	// DropNewest drops new items when the buffer is full.
	DropNewest
)

// String returns a human-readable representation of the overflow policy.
func (p OverflowPolicy) String() string {
	switch p {
	case DropOldest:
		return "DropOldest"
	case DropNewest:
		return "DropNewest"
	default:
		return "Unknown"
	}
}

// DropCallback is called, outside the buffer lock, with every dropped item.
type DropCallback[T any] func(item T)

// Stats is a snapshot of buffer counters.
type Stats struct {
	Writes  int64
	Reads   int64
	Drops   int64
	Size    int
	MaxSize int
}

// Ring is a fixed-capacity circular buffer.
type Ring[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int // next write position
	tail   int // next read position
	size   int
	closed bool

	ready   chan struct{}
	opts    *bufferOptions[T]
	metrics *bufferMetrics

	writes  atomic.Int64
	reads   atomic.Int64
	drops   atomic.Int64
	maxSize atomic.Int64
}

// New creates a ring holding up to capacity items. A capacity below one is
// raised to one. Metrics registration failures are returned.
func New[T any](capacity int, options ...Option[T]) (*Ring[T], error) {
	if capacity <= 0 {
		capacity = 1
	}
	opts := applyOptions(options)

	var metrics *bufferMetrics
	if opts.metricsReg != nil {
		var err error
		metrics, err = newBufferMetrics(opts.metricsReg, opts.metricsService)
		if err != nil {
			return nil, errors.WrapTransient(err, "buffer", "New", "metrics registration")
		}
	}

	return &Ring[T]{
		items:   make([]T, capacity),
		ready:   make(chan struct{}, 1),
		opts:    opts,
		metrics: metrics,
	}, nil
}

// Write adds item, applying the overflow policy when the ring is full.
// Writing to a closed ring fails with errors.ErrShuttingDown.
func (r *Ring[T]) Write(item T) error {
	var (
		dropped T
		didDrop bool
	)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.WrapInvalid(errors.ErrShuttingDown, "Ring", "Write", "buffer closed")
	}

	if r.size == len(r.items) {
		didDrop = true
		r.drops.Add(1)
		if r.metrics != nil {
			r.metrics.drops.Inc()
		}
		if r.opts.overflowPolicy == DropNewest {
			r.mu.Unlock()
			r.dropped(item)
			return nil
		}
		dropped = r.items[r.tail]
		r.tail = (r.tail + 1) % len(r.items)
		r.size--
	}

	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	r.size++
	size := r.size
	r.mu.Unlock()

	r.writes.Add(1)
	if int64(size) > r.maxSize.Load() {
		r.maxSize.Store(int64(size))
	}
	if r.metrics != nil {
		r.metrics.recordWrite(size, len(r.items))
	}
	if didDrop {
		r.dropped(dropped)
	}

	select {
	case r.ready <- struct{}{}:
	default:
	}
	return nil
}

func (r *Ring[T]) dropped(item T) {
	if r.opts.dropCallback != nil {
		r.opts.dropCallback(item)
	}
}

// ReadBatch removes and returns up to max items in write order.
func (r *Ring[T]) ReadBatch(max int) []T {
	if max <= 0 {
		return nil
	}

	r.mu.Lock()
	n := min(max, r.size)
	if n == 0 {
		r.mu.Unlock()
		return nil
	}

	var zero T
	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = r.items[r.tail]
		r.items[r.tail] = zero
		r.tail = (r.tail + 1) % len(r.items)
	}
	r.size -= n
	size := r.size
	r.mu.Unlock()

	r.reads.Add(int64(n))
	if r.metrics != nil {
		r.metrics.recordRead(n, size, len(r.items))
	}
	return out
}

// Ready receives a value after writes. One value may stand for many
// writes, so readers drain with ReadBatch until it returns nothing.
func (r *Ring[T]) Ready() <-chan struct{} {
	return r.ready
}

// Len returns the number of queued items
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Cap returns the ring capacity
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Stats returns a snapshot of the counters
func (r *Ring[T]) Stats() Stats {
	return Stats{
		Writes:  r.writes.Load(),
		Reads:   r.reads.Load(),
		Drops:   r.drops.Load(),
		Size:    r.Len(),
		MaxSize: int(r.maxSize.Load()),
	}
}

// Close rejects further writes. Queued items remain readable.
func (r *Ring[T]) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
