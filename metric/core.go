package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by the runtime.
const Namespace = "tremor"

// Metrics contains the runtime-wide metrics shared by every artefact
type Metrics struct {
	ArtefactStatus     *prometheus.GaugeVec
	EventsIn           *prometheus.CounterVec
	EventsOut          *prometheus.CounterVec
	EventsDropped      *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all runtime metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ArtefactStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "artefact",
				Name:      "status",
				Help:      "Artefact status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"artefact"},
		),

		EventsIn: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "events",
				Name:      "in_total",
				Help:      "Total number of events received by an artefact",
			},
			[]string{"artefact", "port"},
		),

		EventsOut: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "events",
				Name:      "out_total",
				Help:      "Total number of events emitted by an artefact",
			},
			[]string{"artefact", "port"},
		),

		EventsDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "events",
				Name:      "dropped_total",
				Help:      "Total number of events dropped by an artefact",
			},
			[]string{"artefact", "reason"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "processing",
				Name:      "duration_seconds",
				Help:      "Event processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"artefact", "operation"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Total number of errors by failure kind",
			},
			[]string{"artefact", "kind"},
		),
	}
}

func (c *Metrics) register(r prometheus.Registerer) {
	r.MustRegister(
		c.ArtefactStatus,
		c.EventsIn,
		c.EventsOut,
		c.EventsDropped,
		c.ProcessingDuration,
		c.ErrorsTotal,
	)
}

// Artefact status values
const (
	StatusStopped = iota
	StatusStarting
	StatusRunning
	StatusStopping
	StatusFailed
)

// RecordStatus updates the artefact status metric
func (c *Metrics) RecordStatus(artefact string, status int) {
	c.ArtefactStatus.WithLabelValues(artefact).Set(float64(status))
}

// RecordEventIn increments the received event counter
func (c *Metrics) RecordEventIn(artefact, port string) {
	c.EventsIn.WithLabelValues(artefact, port).Inc()
}

// RecordEventOut increments the emitted event counter
func (c *Metrics) RecordEventOut(artefact, port string) {
	c.EventsOut.WithLabelValues(artefact, port).Inc()
}

// RecordDropped increments the dropped event counter
func (c *Metrics) RecordDropped(artefact, reason string) {
	c.EventsDropped.WithLabelValues(artefact, reason).Inc()
}

// RecordProcessingDuration records processing time
func (c *Metrics) RecordProcessingDuration(artefact, operation string, duration time.Duration) {
	c.ProcessingDuration.WithLabelValues(artefact, operation).Observe(duration.Seconds())
}

// RecordError increments the error counter for a failure kind
func (c *Metrics) RecordError(artefact, kind string) {
	c.ErrorsTotal.WithLabelValues(artefact, kind).Inc()
}
