package system

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cockroachdb/field-eng-powertools/stopper"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/health"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/offramp"
	"github.com/jaysonsantos/tremor-runtime/onramp"
	"github.com/jaysonsantos/tremor-runtime/operator"
	"github.com/jaysonsantos/tremor-runtime/pipeline"
	"github.com/jaysonsantos/tremor-runtime/tremorurl"
)

// DefaultGrace bounds each shutdown phase.
const DefaultGrace = 5 * time.Second

// Deps carries the registries and ambient dependencies of a World. Nil
// registries fall back to the package defaults.
type Deps struct {
	Onramps         *onramp.Registry
	Offramps        *offramp.Registry
	Operators       *operator.Registry
	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
	// Grace bounds each shutdown phase; zero means DefaultGrace.
	Grace time.Duration
}

// pipelineConnect is a Connect addressed to the pipeline it configures.
type pipelineConnect struct {
	pipeline string
	msg      pipeline.Connect
}

type runner struct {
	done chan struct{}
	err  error
}

func newRunner() *runner {
	return &runner{done: make(chan struct{})}
}

// World is a configured runtime.
type World struct {
	id     string
	cfg    *config.Config
	logger *slog.Logger
	grace  time.Duration

	metrics       *metric.MetricsRegistry
	metricsServer *metric.Server
	health        *health.Monitor

	onramps   []*onramp.Onramp
	pipelines []*pipeline.Pipeline
	offramps  []*offramp.Offramp

	onrampConnects   map[string][]pipeline.Destination
	pipelineConnects []pipelineConnect
	pipelineIndex    map[string]int

	ready     chan struct{}
	closeOnce sync.Once
}

// New builds every artefact declared by cfg. Nothing is started; artefacts
// built before a failure are released again.
func New(cfg *config.Config, deps Deps) (*World, error) {
	if cfg == nil {
		return nil, errors.WrapFatal(fmt.Errorf("nil config: %w", errors.ErrConfig), "World", "New", "config check")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "world", "instance", id)

	if deps.Onramps == nil {
		deps.Onramps = onramp.Default
	}
	if deps.Offramps == nil {
		deps.Offramps = offramp.Default
	}
	if deps.Grace <= 0 {
		deps.Grace = DefaultGrace
	}

	w := &World{
		id:             id,
		cfg:            cfg,
		logger:         logger,
		grace:          deps.Grace,
		metrics:        deps.MetricsRegistry,
		onrampConnects: make(map[string][]pipeline.Destination),
		pipelineIndex:  make(map[string]int),
		health:         health.NewMonitor("world"),
		ready:          make(chan struct{}),
	}
	var core *metric.Metrics
	if w.metrics != nil {
		core = w.metrics.CoreMetrics()
	}

	if err := w.build(deps, core); err != nil {
		w.release()
		return nil, err
	}
	if err := w.bind(); err != nil {
		w.release()
		return nil, err
	}

	if cfg.Metrics.Enabled && w.metrics != nil {
		w.metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, w.metrics)
		w.metricsServer.HandleHealth(w.health)
	}
	return w, nil
}

func (w *World) build(deps Deps, core *metric.Metrics) error {
	for _, oc := range w.cfg.Offramps {
		od := offramp.Deps{Logger: w.logger, Metrics: core, MetricsRegistry: deps.MetricsRegistry}
		sink, err := deps.Offramps.Create(oc, od)
		if err != nil {
			return err
		}
		o, err := offramp.New(oc, sink, od)
		if err != nil {
			_ = sink.Close()
			return err
		}
		w.offramps = append(w.offramps, o)
	}

	for _, pc := range w.cfg.Pipelines {
		p, err := pipeline.New(pc, pipeline.Deps{
			Operators:       deps.Operators,
			Logger:          w.logger,
			Metrics:         core,
			MetricsRegistry: deps.MetricsRegistry,
		})
		if err != nil {
			return err
		}
		w.pipelineIndex[pc.ID] = len(w.pipelines)
		w.pipelines = append(w.pipelines, p)
	}

	for _, oc := range w.cfg.Onramps {
		od := onramp.Deps{Logger: w.logger, Metrics: core, MetricsRegistry: deps.MetricsRegistry}
		src, err := deps.Onramps.Create(oc, od)
		if err != nil {
			return err
		}
		o, err := onramp.New(oc, src, od)
		if err != nil {
			return err
		}
		w.onramps = append(w.onramps, o)
	}
	return nil
}

// bind resolves every binding into the Connect messages applied by Run.
// Destinations of one producer port are grouped into a single message.
func (w *World) bind() error {
	pipelineConnects := make(map[tremorurl.URL]int)

	for _, b := range w.cfg.Bindings {
		dests := make([]pipeline.Destination, 0, len(b.To))
		for _, to := range b.To {
			addr, err := w.resolve(to)
			if err != nil {
				return err
			}
			if _, ok := to.InstancePort(); !ok {
				w.logger.Warn("Binding destination has no instance port and will receive nothing",
					"from", b.From.String(), "to", to.String())
			}
			dests = append(dests, pipeline.Destination{URL: to, Addr: addr})
		}

		switch b.From.Type {
		case tremorurl.TypeOnramp:
			w.onrampConnects[b.From.Artefact] = append(w.onrampConnects[b.From.Artefact], dests...)
		case tremorurl.TypePipeline:
			port := b.From.Port
			if port == "" {
				port = operator.PortOut
			}
			key := tremorurl.URL{Type: tremorurl.TypePipeline, Artefact: b.From.Artefact, Port: port}
			if i, ok := pipelineConnects[key]; ok {
				c := &w.pipelineConnects[i].msg
				c.Destinations = append(c.Destinations, dests...)
				continue
			}
			pipelineConnects[key] = len(w.pipelineConnects)
			w.pipelineConnects = append(w.pipelineConnects, pipelineConnect{
				pipeline: b.From.Artefact,
				msg:      pipeline.Connect{Port: port, Destinations: dests},
			})
		}
	}
	return nil
}

func (w *World) resolve(u tremorurl.URL) (pipeline.Addr, error) {
	switch u.Type {
	case tremorurl.TypePipeline:
		if p := w.Pipeline(u.Artefact); p != nil {
			return p.Addr(), nil
		}
	case tremorurl.TypeOfframp:
		if o := w.Offramp(u.Artefact); o != nil {
			return o.Addr(), nil
		}
	}
	return pipeline.Addr{}, errors.WrapFatal(fmt.Errorf("destination %s: %w", u.String(), errors.ErrUnknownArtefact),
		"World", "bind", "destination resolution")
}

// ID returns the instance id of this World
func (w *World) ID() string {
	return w.id
}

// Onramp returns the onramp with the given id, or nil
func (w *World) Onramp(id string) *onramp.Onramp {
	for _, o := range w.onramps {
		if o.ID() == id {
			return o
		}
	}
	return nil
}

// Pipeline returns the pipeline with the given id, or nil
func (w *World) Pipeline(id string) *pipeline.Pipeline {
	if i, ok := w.pipelineIndex[id]; ok {
		return w.pipelines[i]
	}
	return nil
}

// Offramp returns the offramp with the given id, or nil
func (w *World) Offramp(id string) *offramp.Offramp {
	for _, o := range w.offramps {
		if o.ID() == id {
			return o
		}
	}
	return nil
}

// Health returns the monitor tracking every running artefact
func (w *World) Health() *health.Monitor {
	return w.health
}

// Ready is closed once every artefact is running
func (w *World) Ready() <-chan struct{} {
	return w.ready
}

// Run starts every artefact and blocks until ctx is done or a pipeline
// fails, then shuts down. It returns the first failure, if any. A World
// runs once.
func (w *World) Run(ctx context.Context) error {
	stop := stopper.WithContext(ctx)
	defer w.release()

	offramps, err := w.startOfframps(stop)
	if err != nil {
		w.shutdown(nil, nil, offramps)
		stop.Stop(w.grace)
		return errors.Join(err, stop.Wait())
	}
	pipelines := w.startPipelines(stop)
	onramps, err := w.startOnramps(stop)
	if err != nil {
		w.shutdown(onramps, pipelines, offramps)
		stop.Stop(w.grace)
		return errors.Join(err, stop.Wait())
	}
	if err := w.startMetrics(stop); err != nil {
		w.shutdown(onramps, pipelines, offramps)
		stop.Stop(w.grace)
		return errors.Join(err, stop.Wait())
	}

	close(w.ready)
	w.logger.Info("World running", "onramps", len(w.onramps), "pipelines", len(w.pipelines), "offramps", len(w.offramps))

	failed := make(chan struct{})
	var failOnce sync.Once
	for _, r := range pipelines {
		r := r
		stop.Go(func(*stopper.Context) error {
			<-r.done
			if r.err != nil {
				failOnce.Do(func() { close(failed) })
			}
			return nil
		})
	}

	select {
	case <-ctx.Done():
	case <-stop.Stopping():
	case <-failed:
		w.logger.Error("Pipeline failed, shutting down")
	}

	w.shutdown(onramps, pipelines, offramps)
	stop.Stop(w.grace)
	if err := stop.Wait(); err != nil {
		return err
	}

	var errs []error
	for _, r := range pipelines {
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return errors.Join(errs...)
}

func (w *World) startOfframps(stop *stopper.Context) ([]*runner, error) {
	g, gctx := errgroup.WithContext(stop)
	for _, o := range w.offramps {
		o := o
		g.Go(func() error { return o.Open(gctx) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	runners := make([]*runner, len(w.offramps))
	for i, o := range w.offramps {
		runners[i] = w.track(stop, o.URL(), o.Run)
	}
	return runners, nil
}

func (w *World) startPipelines(stop *stopper.Context) []*runner {
	for _, c := range w.pipelineConnects {
		// Run has not started, so Handle is not racing the pipeline goroutine.
		_ = w.pipelines[w.pipelineIndex[c.pipeline]].Handle(c.msg)
	}

	runners := make([]*runner, len(w.pipelines))
	for i, p := range w.pipelines {
		runners[i] = w.track(stop, p.URL(), p.Run)
	}
	return runners
}

func (w *World) startOnramps(stop *stopper.Context) ([]*runner, error) {
	g, gctx := errgroup.WithContext(stop)
	for _, o := range w.onramps {
		o := o
		g.Go(func() error { return o.Open(gctx) })
	}
	if err := g.Wait(); err != nil {
		for _, o := range w.onramps {
			_ = o.Stop()
		}
		return nil, err
	}

	runners := make([]*runner, len(w.onramps))
	for i, o := range w.onramps {
		// Queued before the loop starts, so it is handled before any data.
		if dests := w.onrampConnects[o.ID()]; len(dests) > 0 {
			o.Addr() <- onramp.Connect{Destinations: dests}
		}
		runners[i] = w.track(stop, o.URL(), o.Run)
	}
	return runners, nil
}

// track runs an artefact loop under stop and mirrors its lifecycle into
// the health monitor.
func (w *World) track(stop *stopper.Context, url tremorurl.URL, run func(context.Context) error) *runner {
	r := newRunner()
	name := url.String()
	w.health.SetHealthy(name, "running")
	stop.Go(func(ctx *stopper.Context) error {
		defer close(r.done)
		r.err = run(ctx)
		if r.err != nil {
			w.health.SetUnhealthy(name, r.err.Error())
		} else {
			w.health.SetDegraded(name, "stopped")
		}
		return nil
	})
	return r
}

func (w *World) startMetrics(stop *stopper.Context) error {
	if w.metricsServer == nil {
		return nil
	}
	if err := w.metricsServer.Listen(); err != nil {
		return err
	}
	stop.Go(func(*stopper.Context) error {
		return w.metricsServer.Serve()
	})
	stop.Go(func(ctx *stopper.Context) error {
		<-ctx.Stopping()
		return w.metricsServer.Stop()
	})
	w.logger.Info("Metrics endpoint listening", "address", w.metricsServer.Address())
	return nil
}

// shutdown stops the artefacts source to sink, waiting up to the grace
// period for each phase.
func (w *World) shutdown(onramps, pipelines, offramps []*runner) {
	for i, r := range onramps {
		ack := make(chan struct{})
		select {
		case w.onramps[i].Addr() <- onramp.Disconnect{ID: w.onramps[i].URL(), Ack: ack}:
			w.await(ack, "onramp disconnect", w.onramps[i].ID())
		case <-r.done:
		case <-time.After(w.grace):
			w.logger.Warn("Onramp did not accept disconnect", "onramp", w.onramps[i].ID())
		}
		w.await(r.done, "onramp stop", w.onramps[i].ID())
	}

	for i, r := range pipelines {
		w.pipelines[i].Stop()
		w.await(r.done, "pipeline stop", w.pipelines[i].ID())
	}

	for i, r := range offramps {
		w.offramps[i].Stop()
		w.await(r.done, "offramp stop", w.offramps[i].ID())
	}
}

func (w *World) await(done <-chan struct{}, phase, id string) {
	select {
	case <-done:
	case <-time.After(w.grace):
		w.logger.Warn("Shutdown phase timed out", "phase", phase, "artefact", id, "grace", w.grace)
	}
}

// release closes every artefact. Idempotent.
func (w *World) release() {
	w.closeOnce.Do(func() {
		for _, o := range w.onramps {
			if err := o.Stop(); err != nil {
				w.logger.Warn("Onramp stop failed", "onramp", o.ID(), "error", err)
			}
		}
		for _, p := range w.pipelines {
			if err := p.Close(); err != nil {
				w.logger.Warn("Pipeline close failed", "pipeline", p.ID(), "error", err)
			}
		}
		for _, o := range w.offramps {
			if err := o.Close(); err != nil {
				w.logger.Warn("Offramp close failed", "offramp", o.ID(), "error", err)
			}
		}
		if w.metrics != nil {
			for _, o := range w.cfg.Onramps {
				w.metrics.UnregisterService("onramp." + o.ID)
			}
			for _, o := range w.cfg.Offramps {
				w.metrics.UnregisterService("offramp." + o.ID)
			}
		}
		w.logger.Info("World stopped")
	})
}
