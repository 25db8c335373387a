package onramp

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaysonsantos/tremor-runtime/codec"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/pipeline"
	"github.com/jaysonsantos/tremor-runtime/preprocessor"
	"github.com/jaysonsantos/tremor-runtime/tremorurl"
)

// Msg is a control message of a dispatch loop.
type Msg interface {
	isControl()
}

// Connect appends destinations to the loop's fan-out list.
type Connect struct {
	Destinations []pipeline.Destination
}

// Disconnect stops the loop. Ack is required and is closed exactly once,
// before the loop returns; a Disconnect with a nil Ack is logged and
// ignored. ID names the requester and is only logged.
type Disconnect struct {
	ID  tremorurl.URL
	Ack chan<- struct{}
}

func (Connect) isControl()    {}
func (Disconnect) isControl() {}

// Addr is the control address of a dispatch loop.
type Addr chan<- Msg

// State is the dispatch state of a loop.
type State int32

const (
	// Idle loops have no destinations and discard raw messages.
	Idle State = iota
	// Active loops decode and deliver raw messages.
	Active
	// Stopped loops have returned from Run.
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// DefaultControlBuffer is the capacity of a loop's control channel.
const DefaultControlBuffer = 16

// LoopConfig configures a dispatch loop.
type LoopConfig struct {
	// ID names the onramp in logs and metrics.
	ID            string
	Codec         codec.Codec
	Preprocessors *preprocessor.Chain
	Logger        *slog.Logger
	Metrics       *metric.Metrics
	// Now returns the ingest timestamp in nanoseconds. Defaults to event.Now.
	Now func() uint64
}

// Stats are the loop's counters. Every error is counted, whether or not it
// was logged.
type Stats struct {
	Received         uint64
	IdleDiscards     uint64
	PreprocessErrors uint64
	DecodeErrors     uint64
	Events           uint64
	DeliveryErrors   uint64
}

type loopStats struct {
	received         atomic.Uint64
	idleDiscards     atomic.Uint64
	preprocessErrors atomic.Uint64
	decodeErrors     atomic.Uint64
	events           atomic.Uint64
	deliveryErrors   atomic.Uint64
}

// Loop is the per-onramp dispatch worker.
type Loop struct {
	id      string
	codec   codec.Codec
	pre     *preprocessor.Chain
	control chan Msg
	data    <-chan []byte
	now     func() uint64

	dests  []pipeline.Destination
	nextID uint64
	state  atomic.Int32

	logger  *slog.Logger
	limiter *rate.Limiter
	metrics *metric.Metrics
	stats   loopStats
}

// NewLoop creates a loop reading raw messages from data
func NewLoop(cfg LoopConfig, data <-chan []byte) *Loop {
	c := cfg.Codec
	if c == nil {
		c = codec.NewJSON()
	}
	pre := cfg.Preprocessors
	if pre == nil {
		pre = preprocessor.ChainOf()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "onramp", "onramp", cfg.ID)
	}
	now := cfg.Now
	if now == nil {
		now = event.Now
	}

	return &Loop{
		id:      cfg.ID,
		codec:   c,
		pre:     pre,
		control: make(chan Msg, DefaultControlBuffer),
		data:    data,
		now:     now,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Second), 10),
		metrics: cfg.Metrics,
	}
}

// Addr returns the control address
func (l *Loop) Addr() Addr {
	return l.control
}

// State returns the current dispatch state. Safe from any goroutine.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stats returns a snapshot of the loop counters
func (l *Loop) Stats() Stats {
	return Stats{
		Received:         l.stats.received.Load(),
		IdleDiscards:     l.stats.idleDiscards.Load(),
		PreprocessErrors: l.stats.preprocessErrors.Load(),
		DecodeErrors:     l.stats.decodeErrors.Load(),
		Events:           l.stats.events.Load(),
		DeliveryErrors:   l.stats.deliveryErrors.Load(),
	}
}

// Run dispatches until a Disconnect is received or ctx is done. Pending
// raw messages are dropped on return.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(Stopped)
	l.setState(Idle)

	data := l.data
	for {
		if l.drainControl() {
			return nil
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("Dispatch loop cancelled")
			return nil
		case msg := <-l.control:
			if l.handleControl(msg) {
				return nil
			}
		case raw, ok := <-data:
			if !ok {
				l.logger.Debug("Source closed, waiting for disconnect")
				data = nil
				continue
			}
			// Control queued while waiting still goes first.
			if l.drainControl() {
				return nil
			}
			l.handleData(raw)
		}
	}
}

// drainControl handles every queued control message without blocking and
// reports whether the loop must return.
func (l *Loop) drainControl() bool {
	for {
		select {
		case msg := <-l.control:
			if l.handleControl(msg) {
				return true
			}
		default:
			return false
		}
	}
}

// handleControl applies msg and reports whether the loop must return.
func (l *Loop) handleControl(msg Msg) bool {
	switch m := msg.(type) {
	case Connect:
		l.dests = append(l.dests, m.Destinations...)
		if len(l.dests) > 0 {
			l.setState(Active)
		}
		l.logger.Debug("Connected destinations", "count", len(m.Destinations), "total", len(l.dests))
	case Disconnect:
		if m.Ack == nil {
			l.logger.Warn("Ignoring disconnect without acknowledgment channel", "from", m.ID.String())
			return false
		}
		l.logger.Debug("Disconnect received", "from", m.ID.String())
		close(m.Ack)
		return true
	}
	return false
}

func (l *Loop) handleData(raw []byte) {
	l.stats.received.Add(1)
	if len(l.dests) == 0 {
		l.stats.idleDiscards.Add(1)
		if l.metrics != nil {
			l.metrics.RecordDropped(l.id, "idle")
		}
		return
	}
	if l.metrics != nil {
		l.metrics.RecordEventIn(l.id, "raw")
	}

	ingestNS := l.now()
	buffers, err := l.pre.Process(ingestNS, raw)
	if err != nil {
		l.stats.preprocessErrors.Add(1)
		l.recordError(err, "Preprocessor error, message dropped")
		return
	}

	for _, buf := range buffers {
		v, err := l.codec.Decode(buf, ingestNS)
		if err != nil {
			l.stats.decodeErrors.Add(1)
			l.recordError(err, "Decode error, buffer skipped")
			continue
		}
		if v == nil {
			continue
		}

		ev := event.New(l.nextID, ingestNS, v)
		l.nextID++
		l.stats.events.Add(1)

		res := pipeline.Fanout(l.dests, ev)
		if l.metrics != nil && res.Delivered > 0 {
			l.metrics.RecordEventOut(l.id, "out")
		}
		for _, f := range res.Failed {
			l.stats.deliveryErrors.Add(1)
			l.recordError(f, "Delivery failed")
		}
	}
}

func (l *Loop) recordError(err error, msg string) {
	if l.metrics != nil {
		l.metrics.RecordError(l.id, errors.Kind(err))
	}
	if l.limiter.Allow() {
		l.logger.Warn(msg, "error", err)
	}
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	if l.metrics == nil {
		return
	}
	switch s {
	case Idle:
		l.metrics.RecordStatus(l.id, metric.StatusStarting)
	case Active:
		l.metrics.RecordStatus(l.id, metric.StatusRunning)
	case Stopped:
		l.metrics.RecordStatus(l.id, metric.StatusStopped)
	}
}
