package buffer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jaysonsantos/tremor-runtime/metric"
)

// bufferMetrics mirrors the ring counters into Prometheus, labelled by the
// owning artefact.
type bufferMetrics struct {
	writes      prometheus.Counter
	reads       prometheus.Counter
	drops       prometheus.Counter
	size        prometheus.Gauge
	utilization prometheus.Gauge
}

func newBufferMetrics(registry *metric.MetricsRegistry, service string) (*bufferMetrics, error) {
	labels := prometheus.Labels{"component": service}
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: "buffer", Name: name, Help: help, ConstLabels: labels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace, Subsystem: "buffer", Name: name, Help: help, ConstLabels: labels,
		})
	}

	m := &bufferMetrics{
		writes:      counter("writes_total", "Items written to the buffer"),
		reads:       counter("reads_total", "Items read from the buffer"),
		drops:       counter("drops_total", "Items dropped on overflow"),
		size:        gauge("size", "Items currently buffered"),
		utilization: gauge("utilization", "Fill ratio of the buffer between 0 and 1"),
	}

	for name, c := range map[string]prometheus.Collector{
		"buffer_writes":      m.writes,
		"buffer_reads":       m.reads,
		"buffer_drops":       m.drops,
		"buffer_size":        m.size,
		"buffer_utilization": m.utilization,
	} {
		if err := registry.Register(service, name, c); err != nil {
			registry.UnregisterService(service)
			return nil, err
		}
	}
	return m, nil
}

func (m *bufferMetrics) recordWrite(size, capacity int) {
	m.writes.Inc()
	m.updateSize(size, capacity)
}

func (m *bufferMetrics) recordRead(n, size, capacity int) {
	m.reads.Add(float64(n))
	m.updateSize(size, capacity)
}

func (m *bufferMetrics) updateSize(size, capacity int) {
	m.size.Set(float64(size))
	m.utilization.Set(float64(size) / float64(capacity))
}
