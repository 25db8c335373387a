package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/operator"
	"github.com/jaysonsantos/tremor-runtime/tremorurl"
	"github.com/jaysonsantos/tremor-runtime/value"
)

// Deps carries runtime dependencies into a pipeline.
type Deps struct {
	Operators       *operator.Registry
	Logger          *slog.Logger
	Metrics         *metric.Metrics
	MetricsRegistry *metric.MetricsRegistry
}

type node struct {
	id      string
	op      operator.Operator
	onError string
	state   value.State
}

// Pipeline is a running operator chain.
type Pipeline struct {
	id      string
	url     tremorurl.URL
	mailbox *Mailbox
	nodes   []*node
	outputs map[string][]Destination

	logger  *slog.Logger
	limiter *rate.Limiter
	metrics *metric.Metrics

	closeOnce sync.Once
	closeErr  error
}

// New builds the operators of cfg. Operators constructed before a failure
// are closed again.
func New(cfg config.PipelineConfig, deps Deps) (*Pipeline, error) {
	if cfg.ID == "" {
		return nil, errors.WrapFatal(errors.ErrConfig, "Pipeline", "New", "pipeline id is required")
	}

	ops := deps.Operators
	if ops == nil {
		ops = operator.Default
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline", "pipeline", cfg.ID)

	capacity := cfg.Mailbox
	if capacity <= 0 {
		capacity = config.DefaultPipelineMailbox
	}

	p := &Pipeline{
		id:      cfg.ID,
		url:     tremorurl.URL{Host: tremorurl.DefaultHost, Type: tremorurl.TypePipeline, Artefact: cfg.ID},
		mailbox: NewMailbox(capacity),
		outputs: make(map[string][]Destination),
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(time.Second), 10),
		metrics: deps.Metrics,
	}

	for _, nc := range cfg.Nodes {
		op, err := ops.Create(operator.NodeConfig{
			ID:     nc.ID,
			Type:   nc.Op,
			Config: nc.Config,
		}, operator.Deps{
			Pipeline:        cfg.ID,
			Logger:          logger,
			MetricsRegistry: deps.MetricsRegistry,
		})
		if err != nil {
			_ = p.Close()
			return nil, errors.Wrap(err, "Pipeline", "New", fmt.Sprintf("create node %q", nc.ID))
		}

		onError := nc.OnError
		if onError == "" {
			onError = config.OnErrorDrop
		}
		p.nodes = append(p.nodes, &node{id: nc.ID, op: op, onError: onError})
	}

	return p, nil
}

// ID returns the pipeline id
func (p *Pipeline) ID() string {
	return p.id
}

// URL returns the artefact URL of the pipeline
func (p *Pipeline) URL() tremorurl.URL {
	return p.url
}

// Addr returns the pipeline's mailbox address
func (p *Pipeline) Addr() Addr {
	return p.mailbox.Addr()
}

// Operator returns the operator of the node with the given id
func (p *Pipeline) Operator(id string) (operator.Operator, bool) {
	for _, n := range p.nodes {
		if n.id == id {
			return n.op, true
		}
	}
	return nil, false
}

// Outputs returns the destinations connected to port
func (p *Pipeline) Outputs(port string) []Destination {
	return append([]Destination(nil), p.outputs[port]...)
}

// Run processes mailbox messages until ctx is done or Stop is called. It
// returns an error only when a node configured with on_error fail fails.
func (p *Pipeline) Run(ctx context.Context) error {
	p.setStatus(metric.StatusRunning)
	p.logger.Info("Pipeline started", "nodes", len(p.nodes))

	for {
		select {
		case <-ctx.Done():
			p.setStatus(metric.StatusStopped)
			return nil
		case <-p.mailbox.Done():
			p.setStatus(metric.StatusStopped)
			return nil
		case msg := <-p.mailbox.Recv():
			if err := p.Handle(msg); err != nil {
				p.setStatus(metric.StatusFailed)
				p.logger.Error("Pipeline failed", "error", err)
				return err
			}
		}
	}
}

// Stop makes Run return and refuses further messages
func (p *Pipeline) Stop() {
	p.mailbox.Close()
}

// Handle processes one message synchronously. Run calls it for every
// message it receives.
func (p *Pipeline) Handle(msg Msg) error {
	switch m := msg.(type) {
	case Event:
		if m.Event.IsSignal() {
			return p.signal(0, m.Event)
		}
		if p.metrics != nil {
			p.metrics.RecordEventIn(p.id, m.Input)
		}
		return p.push(0, m.Input, m.Event)
	case Connect:
		p.connect(m)
	case Disconnect:
		p.disconnect(m)
	default:
		p.logger.Warn("Ignoring unknown message", "type", fmt.Sprintf("%T", msg))
	}
	return nil
}

// push delivers ev to node i on port, then routes what it emits.
func (p *Pipeline) push(i int, port string, ev event.Event) error {
	if i >= len(p.nodes) {
		p.emit(operator.PortOut, ev)
		return nil
	}

	n := p.nodes[i]
	start := time.Now()
	outs, err := n.op.OnEvent(port, &n.state, ev)
	if p.metrics != nil {
		p.metrics.RecordProcessingDuration(p.id, n.id, time.Since(start))
	}
	if err != nil {
		return p.nodeError(n, ev, err)
	}
	return p.route(i, outs)
}

// signal hands ev to every node from i on that handles signals, then emits
// it on the default output.
func (p *Pipeline) signal(i int, ev event.Event) error {
	for j := i; j < len(p.nodes); j++ {
		n := p.nodes[j]
		h, ok := n.op.(operator.SignalHandler)
		if !ok {
			continue
		}
		outs, err := h.OnSignal(&n.state, ev)
		if err != nil {
			if err := p.nodeError(n, ev, err); err != nil {
				return err
			}
			continue
		}
		if err := p.route(j, outs); err != nil {
			return err
		}
	}
	p.emit(operator.PortOut, ev)
	return nil
}

func (p *Pipeline) route(i int, outs []operator.PortEvent) error {
	for _, o := range outs {
		if o.Port == operator.PortOut {
			if err := p.push(i+1, operator.PortIn, o.Event); err != nil {
				return err
			}
			continue
		}
		p.emit(o.Port, o.Event)
	}
	return nil
}

func (p *Pipeline) nodeError(n *node, ev event.Event, err error) error {
	if p.metrics != nil {
		p.metrics.RecordError(p.id, errors.Kind(err))
	}
	if n.onError == config.OnErrorFail || errors.IsFatal(err) {
		return errors.Wrap(err, "Pipeline", "push", fmt.Sprintf("node %q", n.id))
	}

	if p.metrics != nil {
		p.metrics.RecordDropped(p.id, errors.Kind(err))
	}
	if p.limiter.Allow() {
		p.logger.Warn("Dropping event after operator error",
			"node", n.id, "event_id", ev.ID, "error", err)
	}
	return nil
}

func (p *Pipeline) emit(port string, ev event.Event) {
	dests := p.outputs[port]
	if len(dests) == 0 {
		return
	}

	res := Fanout(dests, ev)
	if p.metrics != nil && res.Delivered > 0 {
		p.metrics.RecordEventOut(p.id, port)
	}
	for _, f := range res.Failed {
		if p.metrics != nil {
			p.metrics.RecordError(p.id, errors.Kind(f.Err))
		}
		if p.limiter.Allow() {
			p.logger.Warn("Delivery failed", "port", port, "destination", f.Destination.String(), "error", f.Err)
		}
	}
}

func (p *Pipeline) connect(m Connect) {
	port := m.Port
	if port == "" {
		port = operator.PortOut
	}
	p.outputs[port] = append(p.outputs[port], m.Destinations...)
	p.logger.Debug("Connected destinations", "port", port, "count", len(m.Destinations))
}

func (p *Pipeline) disconnect(m Disconnect) {
	port := m.Port
	if port == "" {
		port = operator.PortOut
	}

	kept := p.outputs[port][:0]
	for _, d := range p.outputs[port] {
		if d.URL != m.ID {
			kept = append(kept, d)
		}
	}
	if len(kept) == 0 {
		delete(p.outputs, port)
	} else {
		p.outputs[port] = kept
	}

	if m.Ack != nil {
		close(m.Ack)
	}
}

// Close stops the mailbox and releases operator resources. Call it after
// Run has returned. Idempotent.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.mailbox.Close()
		var errs []error
		for _, n := range p.nodes {
			c, ok := n.op.(operator.Closer)
			if !ok {
				continue
			}
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("node %q: %w", n.id, err))
			}
		}
		if len(errs) > 0 {
			p.closeErr = errors.Wrap(errors.Join(errs...), "Pipeline", "Close", "close operators")
		}
		p.logger.Debug("Pipeline closed")
	})
	return p.closeErr
}

func (p *Pipeline) setStatus(status int) {
	if p.metrics != nil {
		p.metrics.RecordStatus(p.id, status)
	}
}
