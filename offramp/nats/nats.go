// Package nats provides the NATS offramp: every encoded event is published
// on the configured subject.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/event"
	"github.com/jaysonsantos/tremor-runtime/natsclient"
	"github.com/jaysonsantos/tremor-runtime/offramp"
)

// Type is the registry name of the NATS offramp.
const Type = "nats"

// Config holds configuration for the NATS offramp
type Config struct {
	URL            string        `yaml:"url"`
	Subject        string        `yaml:"subject"`
	Name           string        `yaml:"name"`
	Token          string        `yaml:"token"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns the NATS offramp defaults
func DefaultConfig() Config {
	return Config{
		URL:            "nats://127.0.0.1:4222",
		ConnectTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration. Publishing needs a literal subject.
func (c Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(fmt.Errorf("url is required: %w", errors.ErrConfig),
			"nats", "Validate", "url validation")
	}
	if c.Subject == "" || strings.ContainsAny(c.Subject, " \t*>") {
		return errors.WrapInvalid(fmt.Errorf("invalid publish subject %q: %w", c.Subject, errors.ErrConfig),
			"nats", "Validate", "subject validation")
	}
	if c.ConnectTimeout <= 0 {
		return errors.WrapInvalid(fmt.Errorf("connect_timeout must be positive: %w", errors.ErrConfig),
			"nats", "Validate", "timeout validation")
	}
	return nil
}

// Sink publishes to a NATS subject
type Sink struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	client *natsclient.Client
}

var (
	_ offramp.Sink    = (*Sink)(nil)
	_ offramp.Flusher = (*Sink)(nil)
)

// New creates a NATS sink
func New(cfg Config, name string, deps offramp.Deps) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "nats-offramp")
	}
	return &Sink{cfg: cfg, logger: logger.With("subject", cfg.Subject)}, nil
}

// Register adds the NATS offramp to a registry
func Register(r *offramp.Registry) error {
	return r.RegisterFactory(offramp.Registration{
		Name:        Type,
		Description: "NATS subject publisher",
		Factory: func(oc config.OfframpConfig, deps offramp.Deps) (offramp.Sink, error) {
			cfg := DefaultConfig()
			if err := config.DecodeStrict(oc.Config, &cfg); err != nil {
				return nil, err
			}
			return New(cfg, oc.ID, deps)
		},
	})
}

// Open connects to the server
func (s *Sink) Open(ctx context.Context) error {
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
		return errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "nats", "Open", "create client")
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "nats", "Open",
			fmt.Sprintf("connect %s", s.cfg.URL))
	}
	s.client = client
	return nil
}

// Write publishes data
func (s *Sink) Write(_ event.Event, data []byte) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return errors.WrapInvalid(errors.ErrNotStarted, "nats", "Write", "publish before open")
	}
	return client.Publish(s.cfg.Subject, data)
}

// Flush waits until the server has received everything published
func (s *Sink) Flush() error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	defer cancel()
	return client.Flush(ctx)
}

// Close drains and closes the connection. Idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	client := s.client
	s.client = nil
	s.mu.Unlock()
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return client.Close(ctx)
}
