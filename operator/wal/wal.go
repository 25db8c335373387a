// Package wal provides the write-ahead-log operator.
//
// Every incoming event is appended to a durable log under the next write
// sequence number before anything is forwarded. Forwarding happens by
// replaying up to read_count logged entries from the read cursor, so events
// leave the operator in log order and at least once. In broken mode events
// are logged but nothing is replayed until the mode is cleared.
package wal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/operator"
	"github.com/jaysonsantos/tremor-runtime/pkg/retry"
	"github.com/jaysonsantos/tremor-runtime/storage"
	walstore "github.com/jaysonsantos/tremor-runtime/storage/wal"
	"github.com/jaysonsantos/tremor-runtime/value"
)

// Type is the registry name of the WAL operator.
const Type = "generic::wal"

// WAL is the write-ahead-log operator.
type WAL struct {
	cfg    Config
	store  storage.Log
	logger *slog.Logger

	retryConfig retry.Config
	metrics     *walMetrics

	// Cursors are only advanced on the pipeline goroutine; they are atomic
	// so Cursors may be read from any goroutine.
	write  atomic.Uint64
	read   atomic.Uint64
	broken atomic.Bool
}

var (
	_ operator.Operator = (*WAL)(nil)
	_ operator.Closer   = (*WAL)(nil)
)

// New opens the log described by cfg and builds the operator.
func New(cfg Config, deps operator.Deps) (*WAL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := walstore.Open(walstore.Options{
		Path:       cfg.Path,
		InMemory:   cfg.InMemory,
		SyncWrites: cfg.SyncWrites,
		Logger:     deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	w, err := NewWithStore(cfg, store, deps)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return w, nil
}

// NewWithStore builds the operator on an already opened log. The operator
// takes ownership of store and closes it on Close.
func NewWithStore(cfg Config, store storage.Log, deps operator.Deps) (*WAL, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "wal")
	}

	w := &WAL{
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
	w.write.Store(cfg.Write)
	w.read.Store(cfg.Read)
	w.broken.Store(cfg.Broken)

	w.retryConfig = cfg.AppendRetry.ToRetryConfig()
	w.retryConfig.RetryIf = func(err error) bool { return !errors.IsFatal(err) }

	if cfg.Recover {
		last, ok, err := store.Last()
		if err != nil {
			return nil, errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "WAL", "New", "recover write cursor")
		}
		if ok && last > w.write.Load() {
			w.write.Store(last)
		}
	}
	if write, read := w.Cursors(); write < math.MaxUint64 && read > write+1 {
		return nil, configErr(fmt.Sprintf("read cursor %d is past the log end %d", read, write))
	}

	service := "wal"
	if deps.Pipeline != "" {
		service = deps.Pipeline + "." + service
	}
	w.metrics = newMetrics(deps.MetricsRegistry, service)
	w.updateBacklog()

	w.logger.Info("WAL opened",
		"path", cfg.Path,
		"write", w.write.Load(),
		"read", w.read.Load(),
		"read_count", cfg.ReadCount,
		"broken", cfg.Broken)

	return w, nil
}

// Register adds the WAL operator to an operator registry
func Register(r *operator.Registry) error {
	return r.RegisterFactory(operator.Registration{
		Name:        Type,
		Description: "write-ahead log with bounded replay",
		Factory:     newFromNode,
	})
}

func newFromNode(nc operator.NodeConfig, deps operator.Deps) (operator.Operator, error) {
	cfg := DefaultConfig()
	if err := config.DecodeStrict(nc.Config, &cfg); err != nil {
		return nil, err
	}
	if deps.Pipeline != "" {
		deps.Pipeline = deps.Pipeline + "." + nc.ID
	} else {
		deps.Pipeline = nc.ID
	}
	return New(cfg, deps)
}

// OnEvent logs ev and replays the next window of entries.
func (w *WAL) OnEvent(_ string, _ *value.State, ev event.Event) ([]operator.PortEvent, error) {
	write := w.write.Load()
	if write == math.MaxUint64 {
		return nil, errors.WrapFatal(
			fmt.Errorf("write sequence exhausted: %w", errors.ErrAppend),
			"WAL", "OnEvent", "sequence allocation")
	}

	key := write + 1

	data, err := ev.Marshal()
	if err != nil {
		w.recordAppendError()
		return nil, errors.WrapInvalid(errors.Mark(err, errors.ErrAppend), "WAL", "OnEvent", "serialize event")
	}

	err = retry.Do(context.Background(), w.retryConfig, func() error {
		return w.store.Insert(key, data)
	})
	if err != nil {
		w.recordAppendError()
		return nil, errors.WrapTransient(errors.Mark(err, errors.ErrAppend), "WAL", "OnEvent",
			fmt.Sprintf("append key %d", key))
	}
	w.write.Store(key)
	if w.metrics != nil {
		w.metrics.appended.Inc()
	}

	if w.broken.Load() {
		w.updateBacklog()
		return nil, nil
	}
	return w.replay()
}

// replay emits up to ReadCount entries from the read cursor. The window is
// [read, read+ReadCount]; each returned entry moves read to key+1.
func (w *WAL) replay() ([]operator.PortEvent, error) {
	start := w.read.Load()
	end := start + w.cfg.ReadCount
	if end < start {
		end = math.MaxUint64
	}

	entries, err := w.store.Range(start, end, int(min(w.cfg.ReadCount, math.MaxInt32)))
	if err != nil {
		return nil, errors.WrapTransient(errors.Mark(err, errors.ErrReplay), "WAL", "replay",
			fmt.Sprintf("scan [%d, %d]", start, end))
	}

	out := make([]operator.PortEvent, 0, len(entries))
	for _, entry := range entries {
		ev, err := event.Unmarshal(entry.Value)
		if err != nil {
			if w.metrics != nil {
				w.metrics.replayErrors.Inc()
			}
			if w.cfg.OnReplayError == ReplaySkip {
				w.logger.Warn("Skipping corrupt WAL entry", "key", entry.Key, "error", err)
				if w.metrics != nil {
					w.metrics.skipped.Inc()
				}
				w.read.Store(entry.Key + 1)
				continue
			}
			w.read.Store(start)
			w.updateBacklog()
			return nil, errors.WrapInvalid(errors.Mark(err, errors.ErrReplay), "WAL", "replay",
				fmt.Sprintf("deserialize key %d", entry.Key))
		}
		out = append(out, operator.Out(ev))
		w.read.Store(entry.Key + 1)
	}

	if w.metrics != nil {
		w.metrics.replayed.Add(float64(len(out)))
	}
	w.updateBacklog()
	return out, nil
}

// SetBroken toggles broken mode. Safe to call from any goroutine.
func (w *WAL) SetBroken(broken bool) {
	if w.broken.Swap(broken) != broken {
		w.logger.Info("WAL broken mode changed", "broken", broken)
	}
}

// Broken reports whether replay is suspended.
func (w *WAL) Broken() bool {
	return w.broken.Load()
}

// Cursors returns the write and read cursors. Safe to call from any
// goroutine.
func (w *WAL) Cursors() (write, read uint64) {
	return w.write.Load(), w.read.Load()
}

// Close releases the log.
func (w *WAL) Close() error {
	if err := w.store.Close(); err != nil {
		return errors.Wrap(err, "WAL", "Close", "close log")
	}
	return nil
}

func (w *WAL) recordAppendError() {
	if w.metrics != nil {
		w.metrics.appendErrors.Inc()
	}
}

func (w *WAL) updateBacklog() {
	if w.metrics == nil {
		return
	}
	var backlog uint64
	if write, read := w.Cursors(); write+1 > read {
		backlog = write + 1 - read
	}
	w.metrics.backlog.Set(float64(backlog))
}
