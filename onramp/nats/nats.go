// Package nats provides the NATS onramp: the payload of every message
// received on the configured subject becomes one raw message.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/natsclient"
	"github.com/jaysonsantos/tremor-runtime/onramp"
)

// Type is the registry name of the NATS onramp.
const Type = "nats"

// Config holds configuration for the NATS onramp
type Config struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	// Queue joins a queue group so several onramps share the subject.
	Queue string `yaml:"queue"`
	// Name is reported to the server; defaults to the onramp id.
	Name           string        `yaml:"name"`
	Token          string        `yaml:"token"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns the NATS onramp defaults
func DefaultConfig() Config {
	return Config{
		URL:            "nats://127.0.0.1:4222",
		ConnectTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(fmt.Errorf("url is required: %w", errors.ErrConfig),
			"nats", "Validate", "url validation")
	}
	if c.Subject == "" || strings.ContainsAny(c.Subject, " \t") {
		return errors.WrapInvalid(fmt.Errorf("invalid subject %q: %w", c.Subject, errors.ErrConfig),
			"nats", "Validate", "subject validation")
	}
	if c.ConnectTimeout <= 0 {
		return errors.WrapInvalid(fmt.Errorf("connect_timeout must be positive: %w", errors.ErrConfig),
			"nats", "Validate", "timeout validation")
	}
	return nil
}

// Source subscribes to a NATS subject
type Source struct {
	cfg    Config
	logger *slog.Logger

	// mu is held shared by every in-flight delivery and exclusively by Stop,
	// so Stop returns only after the last send on out.
	mu       sync.RWMutex
	client   *natsclient.Client
	shutdown chan struct{}
	stopped  bool
	stopMu   sync.Mutex

	received atomic.Int64
}

var _ onramp.Source = (*Source)(nil)

// New creates a NATS source
func New(cfg Config, name string, deps onramp.Deps) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = name
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "nats-onramp")
	}
	return &Source{cfg: cfg, logger: logger.With("subject", cfg.Subject), stopped: true}, nil
}

// Register adds the NATS onramp to a registry
func Register(r *onramp.Registry) error {
	return r.RegisterFactory(onramp.Registration{
		Name:        Type,
		Description: "NATS subject subscriber",
		Factory: func(oc config.OnrampConfig, deps onramp.Deps) (onramp.Source, error) {
			cfg := DefaultConfig()
			if err := config.DecodeStrict(oc.Config, &cfg); err != nil {
				return nil, err
			}
			return New(cfg, oc.ID, deps)
		},
	})
}

// Start connects and subscribes. Messages are forwarded to out, blocking
// while out is full.
func (s *Source) Start(ctx context.Context, out chan<- []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	opts := []natsclient.ClientOption{
		natsclient.WithName(s.cfg.Name),
		natsclient.WithTimeout(s.cfg.ConnectTimeout),
		natsclient.WithLogger(s.logger),
	}
	if s.cfg.Token != "" {
		opts = append(opts, natsclient.WithToken(s.cfg.Token))
	}
	client, err := natsclient.NewClient(s.cfg.URL, opts...)
	if err != nil {
		return errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "nats", "Start", "create client")
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "nats", "Start",
			fmt.Sprintf("connect %s", s.cfg.URL))
	}

	shutdown := make(chan struct{})
	if err := client.Subscribe(s.cfg.Subject, s.cfg.Queue, func(data []byte) {
		s.deliver(out, shutdown, data)
	}); err != nil {
		_ = client.Close(ctx)
		return errors.WrapFatal(err, "nats", "Start", "subscribe")
	}

	s.client = client
	s.shutdown = shutdown
	s.stopped = false
	s.logger.Info("NATS onramp subscribed", "url", s.cfg.URL, "queue", s.cfg.Queue)
	return nil
}

func (s *Source) deliver(out chan<- []byte, shutdown <-chan struct{}, data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	s.received.Add(1)
	select {
	case out <- data:
	case <-shutdown:
	}
}

// Stop unsubscribes and closes the connection. Idempotent.
func (s *Source) Stop() error {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	s.mu.RLock()
	shutdown := s.shutdown
	s.mu.RUnlock()
	if shutdown == nil {
		return nil
	}

	// Unblock deliveries waiting on out before taking the exclusive lock.
	close(shutdown)

	s.mu.Lock()
	client := s.client
	s.client = nil
	s.shutdown = nil
	s.stopped = true
	s.mu.Unlock()

	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		return errors.Wrap(err, "nats", "Stop", "close client")
	}
	return nil
}

// Received returns the number of messages taken from the subscription
func (s *Source) Received() int64 {
	return s.received.Load()
}
