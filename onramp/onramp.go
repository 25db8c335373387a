package onramp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jaysonsantos/tremor-runtime/codec"
	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/preprocessor"
	"github.com/jaysonsantos/tremor-runtime/tremorurl"
)

// DefaultDataBuffer is the capacity of the channel between a source and
// its dispatch loop.
const DefaultDataBuffer = 256

// Source produces raw messages.
type Source interface {
	// Start acquires the source's resources and begins delivering raw
	// messages to out. It returns once the source is ready; acquisition
	// failures are returned synchronously.
	Start(ctx context.Context, out chan<- []byte) error
	// Stop releases the source. Nothing is sent on out once Stop returns.
	Stop() error
}

// Onramp couples a source with its dispatch loop.
type Onramp struct {
	id     string
	url    tremorurl.URL
	source Source
	loop   *Loop
	data   chan []byte
	logger *slog.Logger

	stopOnce sync.Once
	stopErr  error
}

// New resolves the codec and preprocessors named by cfg and builds the
// dispatch loop for src.
func New(cfg config.OnrampConfig, src Source, deps Deps) (*Onramp, error) {
	if src == nil {
		return nil, errors.WrapFatal(fmt.Errorf("nil source: %w", errors.ErrConfig), "Onramp", "New", "source check")
	}

	name := cfg.Codec
	if name == "" {
		name = config.DefaultCodec
	}
	c, err := codec.Lookup(name)
	if err != nil {
		return nil, err
	}
	chain, err := preprocessor.NewChain(cfg.Preprocessors...)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "onramp", "onramp", cfg.ID, "type", cfg.Type)

	data := make(chan []byte, DefaultDataBuffer)
	return &Onramp{
		id:     cfg.ID,
		url:    tremorurl.URL{Host: tremorurl.DefaultHost, Type: tremorurl.TypeOnramp, Artefact: cfg.ID},
		source: src,
		data:   data,
		logger: logger,
		loop: NewLoop(LoopConfig{
			ID:            cfg.ID,
			Codec:         c,
			Preprocessors: chain,
			Logger:        logger,
			Metrics:       deps.Metrics,
		}, data),
	}, nil
}

// ID returns the onramp id
func (o *Onramp) ID() string {
	return o.id
}

// URL returns the artefact URL of the onramp
func (o *Onramp) URL() tremorurl.URL {
	return o.url
}

// Addr returns the control address of the dispatch loop
func (o *Onramp) Addr() Addr {
	return o.loop.Addr()
}

// Loop returns the dispatch loop
func (o *Onramp) Loop() *Loop {
	return o.loop
}

// Open starts the source. Call it before Run so acquisition failures
// surface before anything is connected.
func (o *Onramp) Open(ctx context.Context) error {
	if err := o.source.Start(ctx, o.data); err != nil {
		return errors.Wrap(err, "Onramp", "Open", fmt.Sprintf("start source %s", o.id))
	}
	o.logger.Info("Onramp source started")
	return nil
}

// Run runs the dispatch loop until Disconnect or ctx cancellation, then
// stops the source.
func (o *Onramp) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	loopDone := make(chan struct{})

	g.Go(func() error {
		defer close(loopDone)
		return o.loop.Run(gctx)
	})
	g.Go(func() error {
		select {
		case <-loopDone:
		case <-gctx.Done():
		}
		return o.Stop()
	})

	return g.Wait()
}

// Stop stops the source. Idempotent.
func (o *Onramp) Stop() error {
	o.stopOnce.Do(func() {
		if err := o.source.Stop(); err != nil {
			o.stopErr = errors.Wrap(err, "Onramp", "Stop", fmt.Sprintf("stop source %s", o.id))
			return
		}
		o.logger.Info("Onramp source stopped")
	})
	return o.stopErr
}

// Deps carries runtime dependencies into onramps and their factories.
type Deps struct {
	Logger          *slog.Logger
	Metrics         *metric.Metrics
	MetricsRegistry *metric.MetricsRegistry
}
