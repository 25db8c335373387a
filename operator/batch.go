package operator

import (
	"fmt"
	"time"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/value"
)

// BatchType is the registry name of the batch operator.
const BatchType = "generic::batch"

// BatchConfig configures generic::batch.
type BatchConfig struct {
	// Count is the number of events per batch.
	Count int `yaml:"count"`
	// Timeout emits a partial batch when the oldest pending event is older.
	// Zero disables it. Checked when events arrive.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultBatchConfig returns the batch defaults
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{Count: 10}
}

// Validate checks the batch configuration
func (c BatchConfig) Validate() error {
	if c.Count <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("count must be positive, got %d: %w", c.Count, errors.ErrConfig),
			"BatchConfig", "Validate", "count check")
	}
	if c.Timeout < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("timeout must not be negative: %w", errors.ErrConfig),
			"BatchConfig", "Validate", "timeout check")
	}
	return nil
}

// Batch groups events into IsBatch events.
type Batch struct {
	cfg     BatchConfig
	pending []event.Event
	first   time.Time
	now     func() time.Time
}

// NewBatch creates a batch operator
func NewBatch(cfg BatchConfig) (*Batch, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Batch{cfg: cfg, now: time.Now}, nil
}

func newBatchFromConfig(nc NodeConfig, _ Deps) (Operator, error) {
	cfg := DefaultBatchConfig()
	if err := config.DecodeStrict(nc.Config, &cfg); err != nil {
		return nil, err
	}
	return NewBatch(cfg)
}

// Pending returns the number of buffered events.
func (b *Batch) Pending() int {
	return len(b.pending)
}

// OnEvent buffers ev and emits a batch when full or timed out
func (b *Batch) OnEvent(_ string, _ *value.State, ev event.Event) ([]PortEvent, error) {
	if len(b.pending) == 0 {
		b.first = b.now()
	}
	b.pending = append(b.pending, ev)

	if len(b.pending) >= b.cfg.Count ||
		(b.cfg.Timeout > 0 && b.now().Sub(b.first) >= b.cfg.Timeout) {
		return b.emit(), nil
	}
	return nil, nil
}

// OnSignal emits the pending partial batch on flush and drain signals
func (b *Batch) OnSignal(_ *value.State, ev event.Event) ([]PortEvent, error) {
	switch ev.Kind {
	case event.KindFlush, event.KindDrain:
		if len(b.pending) > 0 {
			return b.emit(), nil
		}
	}
	return nil, nil
}

func (b *Batch) emit() []PortEvent {
	out := event.Batch(b.pending)
	b.pending = nil
	return []PortEvent{Out(out)}
}
