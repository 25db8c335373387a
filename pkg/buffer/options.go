package buffer

import (
	"github.com/jaysonsantos/tremor-runtime/metric"
)

// Option configures a Ring.
type Option[T any] func(*bufferOptions[T])

type bufferOptions[T any] struct {
	overflowPolicy OverflowPolicy
	dropCallback   DropCallback[T]

	metricsReg     *metric.MetricsRegistry
	metricsService string
}

// WithOverflowPolicy chooses what a full ring drops. The default is DropOldest.
func WithOverflowPolicy[T any](policy OverflowPolicy) Option[T] {
	return func(o *bufferOptions[T]) { o.overflowPolicy = policy }
}

// WithMetrics exports the ring counters under service. Nothing is exported
// when registry is nil or service is empty.
func WithMetrics[T any](registry *metric.MetricsRegistry, service string) Option[T] {
	return func(o *bufferOptions[T]) {
		if registry == nil || service == "" {
			return
		}
		o.metricsReg, o.metricsService = registry, service
	}
}

// WithDropCallback hands every dropped item to fn.
func WithDropCallback[T any](fn DropCallback[T]) Option[T] {
	return func(o *bufferOptions[T]) { o.dropCallback = fn }
}

func applyOptions[T any](options []Option[T]) *bufferOptions[T] {
	o := &bufferOptions[T]{overflowPolicy: DropOldest}
	for _, opt := range options {
		if opt != nil {
			opt(o)
		}
	}
	return o
}
