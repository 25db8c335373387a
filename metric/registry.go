package metric

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jaysonsantos/tremor-runtime/errors"
)

// MetricsRegistry owns the Prometheus registry of a runtime: the core
// vectors plus the collectors each artefact registers under its service
// name. A collector is tracked as "<service>.<metric>".
type MetricsRegistry struct {
	prom    *prometheus.Registry
	Metrics *Metrics

	mu         sync.RWMutex
	collectors map[string]prometheus.Collector
}

// NewMetricsRegistry creates a registry with the core metrics and the Go
// runtime and process collectors installed
func NewMetricsRegistry() *MetricsRegistry {
	r := &MetricsRegistry{
		prom:       prometheus.NewRegistry(),
		Metrics:    NewMetrics(),
		collectors: make(map[string]prometheus.Collector),
	}
	r.Metrics.register(r.prom)
	r.prom.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prom
}

// CoreMetrics returns the runtime-wide vectors
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

// RegisterCounter registers a counter for service
func (r *MetricsRegistry) RegisterCounter(service, name string, c prometheus.Counter) error {
	return r.Register(service, name, c)
}

// RegisterGauge registers a gauge for service
func (r *MetricsRegistry) RegisterGauge(service, name string, g prometheus.Gauge) error {
	return r.Register(service, name, g)
}

// RegisterHistogram registers a histogram for service
func (r *MetricsRegistry) RegisterHistogram(service, name string, h prometheus.Histogram) error {
	return r.Register(service, name, h)
}

// Register tracks c as service.name and registers it with Prometheus. A
// name already tracked, or a collector Prometheus already knows, is an
// invalid registration.
func (r *MetricsRegistry) Register(service, name string, c prometheus.Collector) error {
	key := service + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.collectors[key]; ok {
		return errors.WrapInvalid(fmt.Errorf("metric %s already registered", key),
			"MetricsRegistry", "Register", "duplicate metric registration")
	}
	if err := r.prom.Register(c); err != nil {
		var dup prometheus.AlreadyRegisteredError
		if errors.As(err, &dup) {
			return errors.WrapInvalid(err, "MetricsRegistry", "Register",
				fmt.Sprintf("prometheus conflict for metric %s", key))
		}
		return errors.WrapFatal(err, "MetricsRegistry", "Register", "prometheus registration")
	}
	r.collectors[key] = c
	return nil
}

// Unregister removes service.name and reports whether it was registered
func (r *MetricsRegistry) Unregister(service, name string) bool {
	key := service + "." + name

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.collectors[key]
	if !ok || !r.prom.Unregister(c) {
		return false
	}
	delete(r.collectors, key)
	return true
}

// UnregisterService removes every metric of service and returns how many
// were removed. Artefacts call it on shutdown so a restarted instance can
// register again.
func (r *MetricsRegistry) UnregisterService(service string) int {
	prefix := service + "."

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, c := range r.collectors {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if r.prom.Unregister(c) {
			delete(r.collectors, key)
			removed++
		}
	}
	return removed
}

// Services returns the sorted names of services with registered metrics
func (r *MetricsRegistry) Services() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for key := range r.collectors {
		// Service names may contain dots; the metric name is the last segment.
		service := key[:strings.LastIndexByte(key, '.')]
		if !slices.Contains(out, service) {
			out = append(out, service)
		}
	}
	slices.Sort(out)
	return out
}
