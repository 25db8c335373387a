package offramp

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/metric"
)

// BlackholeType is the registry name of the blackhole sink.
const BlackholeType = "blackhole"

// BlackholeConfig configures the blackhole sink
type BlackholeConfig struct {
	// Warmup excludes events arriving this soon after Open from the
	// latency histogram.
	Warmup time.Duration `yaml:"warmup"`
}

// Blackhole discards events and records their end-to-end latency, the
// time between ingestion and arrival at the sink.
type Blackhole struct {
	cfg     BlackholeConfig
	now     func() uint64
	latency prometheus.Histogram

	openedNS atomic.Uint64
	count    atomic.Int64
	bytes    atomic.Int64
}

// NewBlackhole creates a blackhole sink. A nil registry disables the
// latency histogram.
func NewBlackhole(cfg BlackholeConfig, name string, registry *metric.MetricsRegistry) *Blackhole {
	b := &Blackhole{cfg: cfg, now: event.Now}
	if registry != nil {
		b.latency = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "blackhole",
			Name:        "latency_seconds",
			Help:        "Time from ingestion to arrival at the blackhole",
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10),
			ConstLabels: prometheus.Labels{"offramp": name},
		})
		registry.RegisterHistogram("offramp."+name, "blackhole_latency", b.latency)
	}
	return b
}

func newBlackholeFromConfig(oc config.OfframpConfig, deps Deps) (Sink, error) {
	var cfg BlackholeConfig
	if err := config.DecodeStrict(oc.Config, &cfg); err != nil {
		return nil, err
	}
	return NewBlackhole(cfg, oc.ID, deps.MetricsRegistry), nil
}

// Open implements Sink
func (b *Blackhole) Open(context.Context) error {
	b.openedNS.Store(b.now())
	return nil
}

// Write implements Sink
func (b *Blackhole) Write(ev event.Event, data []byte) error {
	b.count.Add(1)
	b.bytes.Add(int64(len(data)))

	now := b.now()
	if b.latency == nil || now < b.openedNS.Load()+uint64(b.cfg.Warmup) || ev.IngestNS > now {
		return nil
	}
	b.latency.Observe(time.Duration(now - ev.IngestNS).Seconds())
	return nil
}

// Close implements Sink
func (b *Blackhole) Close() error {
	return nil
}

// Count returns the number of events discarded
func (b *Blackhole) Count() int64 {
	return b.count.Load()
}

// Bytes returns the number of encoded bytes discarded
func (b *Blackhole) Bytes() int64 {
	return b.bytes.Load()
}
