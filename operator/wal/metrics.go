package wal

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jaysonsantos/tremor-runtime/metric"
)

// walMetrics holds Prometheus metrics for one WAL node
type walMetrics struct {
	appended     prometheus.Counter
	replayed     prometheus.Counter
	appendErrors prometheus.Counter
	replayErrors prometheus.Counter
	skipped      prometheus.Counter
	backlog      prometheus.Gauge
}

// newMetrics creates and registers WAL metrics. A nil registry disables them.
func newMetrics(registry *metric.MetricsRegistry, service string) *walMetrics {
	if registry == nil {
		return nil
	}

	labels := prometheus.Labels{"node": service}
	m := &walMetrics{
		appended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "wal",
			Name:        "appended_total",
			Help:        "Events durably appended to the log",
			ConstLabels: labels,
		}),
		replayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "wal",
			Name:        "replayed_total",
			Help:        "Events replayed from the log",
			ConstLabels: labels,
		}),
		appendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "wal",
			Name:        "append_errors_total",
			Help:        "Appends that failed after retries",
			ConstLabels: labels,
		}),
		replayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "wal",
			Name:        "replay_errors_total",
			Help:        "Logged entries that could not be deserialized",
			ConstLabels: labels,
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "wal",
			Name:        "skipped_total",
			Help:        "Corrupt entries stepped over under the skip policy",
			ConstLabels: labels,
		}),
		backlog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "wal",
			Name:        "backlog",
			Help:        "Entries written but not yet replayed (write - read + 1)",
			ConstLabels: labels,
		}),
	}

	registry.RegisterCounter(service, "appended", m.appended)
	registry.RegisterCounter(service, "replayed", m.replayed)
	registry.RegisterCounter(service, "append_errors", m.appendErrors)
	registry.RegisterCounter(service, "replay_errors", m.replayErrors)
	registry.RegisterCounter(service, "skipped", m.skipped)
	registry.RegisterGauge(service, "backlog", m.backlog)

	return m
}
