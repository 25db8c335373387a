// Package retry provides exponential backoff retry for bounded, transient
// failures such as socket binding or a durable append hitting a busy store.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	defaultInitialDelay = 100 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
	defaultMultiplier   = 2.0
	maxMultiplier       = 1000
)

// Config controls the attempt count and delay schedule of Do
type Config struct {
	MaxAttempts  int           // total attempts, values below 1 mean one
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration // cap on any single delay
	Multiplier   float64       // growth factor between delays
	AddJitter    bool          // stretch each delay by up to 25%

	// RetryIf, when set, decides per error whether another attempt is made.
	// Errors it rejects are returned immediately.
	RetryIf func(error) bool
}

// DefaultConfig makes three attempts starting at 100ms
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		Multiplier:   defaultMultiplier,
		AddJitter:    true,
	}
}

// Once runs the operation a single time
func Once() Config {
	return Config{MaxAttempts: 1}
}

// withDefaults fills zero fields and rejects inconsistent ones
func (cfg Config) withDefaults() (Config, error) {
	switch {
	case cfg.InitialDelay < 0, cfg.MaxDelay < 0, cfg.Multiplier < 0:
		return cfg, fmt.Errorf("retry: negative delay or multiplier in %+v", cfg)
	}
	cfg.MaxAttempts = max(cfg.MaxAttempts, 1)
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = defaultInitialDelay
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = defaultMultiplier
	}
	cfg.Multiplier = min(cfg.Multiplier, maxMultiplier)
	if cfg.MaxDelay < cfg.InitialDelay {
		return cfg, fmt.Errorf("retry: max delay %s below initial delay %s", cfg.MaxDelay, cfg.InitialDelay)
	}
	return cfg, nil
}

// Backoff yields the delay schedule of a Config
type Backoff struct {
	next   time.Duration
	cfg    Config
	jitter func(n int64) int64
}

// NewBackoff starts a schedule at cfg.InitialDelay
func NewBackoff(cfg Config) (*Backoff, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Backoff{next: cfg.InitialDelay, cfg: cfg, jitter: rand.Int64N}, nil
}

// Next returns the delay to wait now and advances the schedule
func (b *Backoff) Next() time.Duration {
	d := b.next
	grown := time.Duration(float64(b.next) * b.cfg.Multiplier)
	b.next = min(grown, b.cfg.MaxDelay)
	if grown < 0 {
		b.next = b.cfg.MaxDelay
	}
	if b.cfg.AddJitter && d >= 4 {
		d += time.Duration(b.jitter(int64(d / 4)))
	}
	return d
}

// NonRetryableError stops Do at the first attempt that returns it
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string {
	return "non-retryable: " + e.Err.Error()
}

func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// NonRetryable marks err as final
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err was marked with NonRetryable
func IsNonRetryable(err error) bool {
	var nre *NonRetryableError
	return errors.As(err, &nre)
}

// Do calls fn until it succeeds, attempts run out, the error is final or
// ctx is done. The returned error wraps the last failure.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	b, err := NewBackoff(cfg)
	if err != nil {
		return err
	}
	cfg = b.cfg

	for attempt := 1; ; attempt++ {
		err := fn()
		switch {
		case err == nil:
			return nil
		case IsNonRetryable(err), cfg.RetryIf != nil && !cfg.RetryIf(err):
			return err
		case ctx.Err() != nil:
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt+1, errors.Join(ctx.Err(), err))
		case attempt >= cfg.MaxAttempts:
			if cfg.MaxAttempts == 1 {
				return err
			}
			return fmt.Errorf("retry failed after %d attempts: %w", attempt, err)
		}

		timer := time.NewTimer(b.Next())
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff: %w", errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
	}
}

// DoWithResult is Do for functions that also produce a value
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var result T
	err := Do(ctx, cfg, func() error {
		var err error
		result, err = fn()
		return err
	})
	return result, err
}
