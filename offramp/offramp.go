package offramp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaysonsantos/tremor-runtime/codec"
	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/pipeline"
	"github.com/jaysonsantos/tremor-runtime/tremorurl"
)

// Sink receives encoded events.
type Sink interface {
	// Open acquires the sink's resources.
	Open(ctx context.Context) error
	// Write delivers one encoded event. ev is the event data was encoded from.
	Write(ev event.Event, data []byte) error
	// Close releases the sink.
	Close() error
}

// Flusher is implemented by sinks that buffer writes.
type Flusher interface {
	Flush() error
}

// Deps carries runtime dependencies into offramps and their factories.
type Deps struct {
	Logger          *slog.Logger
	Metrics         *metric.Metrics
	MetricsRegistry *metric.MetricsRegistry
}

// Offramp drains a mailbox into a sink.
type Offramp struct {
	id      string
	url     tremorurl.URL
	mailbox *pipeline.Mailbox
	codec   codec.Codec
	sink    Sink

	logger  *slog.Logger
	limiter *rate.Limiter
	metrics *metric.Metrics

	closeOnce sync.Once
	closeErr  error
}

// New resolves the codec named by cfg and wraps sink.
func New(cfg config.OfframpConfig, sink Sink, deps Deps) (*Offramp, error) {
	if sink == nil {
		return nil, errors.WrapFatal(fmt.Errorf("nil sink: %w", errors.ErrConfig), "Offramp", "New", "sink check")
	}
	name := cfg.Codec
	if name == "" {
		name = config.DefaultCodec
	}
	c, err := codec.Lookup(name)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Offramp{
		id:      cfg.ID,
		url:     tremorurl.URL{Host: tremorurl.DefaultHost, Type: tremorurl.TypeOfframp, Artefact: cfg.ID},
		mailbox: pipeline.NewMailbox(config.DefaultPipelineMailbox),
		codec:   c,
		sink:    sink,
		logger:  logger.With("component", "offramp", "offramp", cfg.ID, "type", cfg.Type),
		limiter: rate.NewLimiter(rate.Every(time.Second), 10),
		metrics: deps.Metrics,
	}, nil
}

// ID returns the offramp id
func (o *Offramp) ID() string {
	return o.id
}

// URL returns the artefact URL of the offramp
func (o *Offramp) URL() tremorurl.URL {
	return o.url
}

// Addr returns the mailbox address pipelines deliver to
func (o *Offramp) Addr() pipeline.Addr {
	return o.mailbox.Addr()
}

// Open opens the sink
func (o *Offramp) Open(ctx context.Context) error {
	if err := o.sink.Open(ctx); err != nil {
		return errors.Wrap(err, "Offramp", "Open", fmt.Sprintf("open sink %s", o.id))
	}
	o.logger.Info("Offramp sink opened")
	return nil
}

// Run delivers mailbox messages until ctx is done or Stop is called.
// Delivery failures are counted and logged; they never end Run.
func (o *Offramp) Run(ctx context.Context) error {
	o.setStatus(metric.StatusRunning)
	defer o.setStatus(metric.StatusStopped)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-o.mailbox.Done():
			return nil
		case msg := <-o.mailbox.Recv():
			o.Handle(msg)
		}
	}
}

// Handle processes one mailbox message synchronously.
func (o *Offramp) Handle(msg pipeline.Msg) {
	switch m := msg.(type) {
	case pipeline.Event:
		if m.Event.IsSignal() {
			o.signal(m.Event)
			return
		}
		if o.metrics != nil {
			o.metrics.RecordEventIn(o.id, m.Input)
		}
		o.deliver(m.Event)
	case pipeline.Disconnect:
		if m.Ack != nil {
			close(m.Ack)
		}
	case pipeline.Connect:
		o.logger.Warn("Offramps have no outputs, ignoring connect")
	}
}

func (o *Offramp) deliver(ev event.Event) {
	events := []event.Event{ev}
	if ev.IsBatch {
		members, err := ev.Unbatch()
		if err != nil {
			o.fail(ev, errors.WrapInvalid(errors.Mark(err, errors.ErrEncode), "Offramp", "deliver", "unbatch"))
			return
		}
		events = members
	}

	for _, e := range events {
		data, err := o.codec.Encode(e.Value)
		if err != nil {
			o.fail(e, err)
			continue
		}
		if err := o.sink.Write(e, data); err != nil {
			o.fail(e, errors.WrapTransient(errors.Mark(err, errors.ErrDelivery), "Offramp", "deliver", "sink write"))
			continue
		}
		if o.metrics != nil {
			o.metrics.RecordEventOut(o.id, "out")
		}
	}
}

func (o *Offramp) signal(ev event.Event) {
	if ev.Kind != event.KindFlush && ev.Kind != event.KindDrain {
		return
	}
	f, ok := o.sink.(Flusher)
	if !ok {
		return
	}
	if err := f.Flush(); err != nil {
		o.fail(ev, errors.WrapTransient(errors.Mark(err, errors.ErrDelivery), "Offramp", "signal", "flush"))
	}
}

func (o *Offramp) fail(ev event.Event, err error) {
	if o.metrics != nil {
		o.metrics.RecordError(o.id, errors.Kind(err))
		o.metrics.RecordDropped(o.id, errors.Kind(err))
	}
	if o.limiter.Allow() {
		o.logger.Warn("Dropping event", "event_id", ev.ID, "error", err)
	}
}

func (o *Offramp) setStatus(status int) {
	if o.metrics != nil {
		o.metrics.RecordStatus(o.id, status)
	}
}

// Stop makes Run return and refuses further messages
func (o *Offramp) Stop() {
	o.mailbox.Close()
}

// Close stops the mailbox, flushes and closes the sink. Messages still
// queued are delivered first. Call it after Run has returned. Idempotent.
func (o *Offramp) Close() error {
	o.closeOnce.Do(func() {
		o.mailbox.Close()
		for drained := false; !drained; {
			select {
			case msg := <-o.mailbox.Recv():
				o.Handle(msg)
			default:
				drained = true
			}
		}
		if f, ok := o.sink.(Flusher); ok {
			if err := f.Flush(); err != nil {
				o.closeErr = errors.Wrap(err, "Offramp", "Close", "flush sink")
			}
		}
		if err := o.sink.Close(); err != nil {
			o.closeErr = errors.Join(o.closeErr, errors.Wrap(err, "Offramp", "Close", "close sink"))
		}
		o.logger.Info("Offramp closed")
	})
	return o.closeErr
}
