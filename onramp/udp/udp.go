// Package udp provides the UDP onramp: every datagram received on the bound
// socket becomes one raw message.
package udp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/onramp"
	"github.com/jaysonsantos/tremor-runtime/pkg/buffer"
	"github.com/jaysonsantos/tremor-runtime/pkg/retry"
)

// Type is the registry name of the UDP onramp.
const Type = "udp"

const (
	maxDatagram      = 65536
	readDeadline     = 100 * time.Millisecond
	forwardBatchSize = 100
)

// Config holds configuration for the UDP onramp
type Config struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the bind port; 0 selects an ephemeral port.
	Port int `yaml:"port"`
	// BufferSize is the number of datagrams held between the socket and the
	// dispatch loop. The oldest are dropped when it overflows.
	BufferSize int `yaml:"buffer_size"`
	// SocketBuffer is the requested OS receive buffer in bytes.
	SocketBuffer int `yaml:"socket_buffer"`
}

// DefaultConfig returns sensible defaults for the UDP onramp
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         0,
		BufferSize:   5000,
		SocketBuffer: 2 * 1024 * 1024,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d: %w", c.Port, errors.ErrConfig),
			"udp", "Validate", "port validation")
	}
	if c.BufferSize <= 0 {
		return errors.WrapInvalid(fmt.Errorf("buffer_size must be positive: %w", errors.ErrConfig),
			"udp", "Validate", "buffer validation")
	}
	if c.SocketBuffer < 0 {
		return errors.WrapInvalid(fmt.Errorf("socket_buffer must not be negative: %w", errors.ErrConfig),
			"udp", "Validate", "buffer validation")
	}
	return nil
}

// Metrics holds Prometheus metrics for the UDP onramp
type Metrics struct {
	packetsReceived prometheus.Counter
	bytesReceived   prometheus.Counter
	socketErrors    prometheus.Counter
	lastActivity    prometheus.Gauge
}

func newMetrics(registry *metric.MetricsRegistry, service string) *Metrics {
	if registry == nil {
		return nil
	}

	labels := prometheus.Labels{"onramp": service}
	m := &Metrics{
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "udp",
			Name:        "packets_received_total",
			Help:        "Total UDP packets received",
			ConstLabels: labels,
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "udp",
			Name:        "bytes_received_total",
			Help:        "Total bytes received from UDP",
			ConstLabels: labels,
		}),
		socketErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "udp",
			Name:        "socket_errors_total",
			Help:        "Socket read errors encountered",
			ConstLabels: labels,
		}),
		lastActivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "udp",
			Name:        "last_activity_timestamp",
			Help:        "Unix timestamp of last received packet",
			ConstLabels: labels,
		}),
	}

	serviceName := "onramp." + service
	registry.RegisterCounter(serviceName, "packets_received", m.packetsReceived)
	registry.RegisterCounter(serviceName, "bytes_received", m.bytesReceived)
	registry.RegisterCounter(serviceName, "socket_errors", m.socketErrors)
	registry.RegisterGauge(serviceName, "last_activity", m.lastActivity)
	return m
}

// Source listens on a UDP socket
type Source struct {
	cfg    Config
	logger *slog.Logger

	ring        *buffer.Ring[[]byte]
	retryConfig retry.Config
	metrics     *Metrics

	mu       sync.Mutex
	conn     *net.UDPConn
	shutdown chan struct{}
	wg       sync.WaitGroup
	running  atomic.Bool

	received atomic.Int64
	errors   atomic.Int64
}

var _ onramp.Source = (*Source)(nil)

// New creates a UDP source
func New(cfg Config, name string, deps onramp.Deps) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "udp-onramp", "port", cfg.Port)
	}

	opts := []buffer.Option[[]byte]{buffer.WithOverflowPolicy[[]byte](buffer.DropOldest)}
	if deps.MetricsRegistry != nil && name != "" {
		opts = append(opts, buffer.WithMetrics[[]byte](deps.MetricsRegistry, "onramp."+name+".udp"))
	}
	ring, err := buffer.New(cfg.BufferSize, opts...)
	if err != nil {
		return nil, err
	}

	return &Source{
		cfg:         cfg,
		logger:      logger,
		ring:        ring,
		retryConfig: retry.DefaultConfig(),
		metrics:     newMetrics(deps.MetricsRegistry, name),
	}, nil
}

// Register adds the UDP onramp to a registry
func Register(r *onramp.Registry) error {
	return r.RegisterFactory(onramp.Registration{
		Name:        Type,
		Description: "UDP datagram listener",
		Factory: func(oc config.OnrampConfig, deps onramp.Deps) (onramp.Source, error) {
			cfg := DefaultConfig()
			if err := config.DecodeStrict(oc.Config, &cfg); err != nil {
				return nil, err
			}
			return New(cfg, oc.ID, deps)
		},
	})
}

// Start binds the socket and begins forwarding datagrams to out
func (s *Source) Start(ctx context.Context, out chan<- []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}

	if err := retry.Do(ctx, s.retryConfig, s.bindSocket); err != nil {
		return errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "udp-onramp", "Start", "socket binding")
	}

	s.shutdown = make(chan struct{})
	s.running.Store(true)

	conn, shutdown := s.conn, s.shutdown
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.readLoop(conn, shutdown)
	}()
	go func() {
		defer s.wg.Done()
		s.forwardLoop(out, shutdown)
	}()

	s.logger.Info("UDP onramp listening", "address", conn.LocalAddr().String())
	return nil
}

func (s *Source) bindSocket() error {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return retry.NonRetryable(fmt.Errorf("resolve UDP address %s:%d: %w", s.cfg.Host, s.cfg.Port, err))
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on UDP port %d: %w", s.cfg.Port, err)
	}

	if s.cfg.SocketBuffer > 0 {
		if err := conn.SetReadBuffer(s.cfg.SocketBuffer); err != nil {
			s.logger.Warn("Could not set UDP buffer size", "buffer_size", s.cfg.SocketBuffer, "error", err)
		}
	}

	s.conn = conn
	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Source) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Stop closes the socket and waits for the worker goroutines
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.running.Swap(false) {
		s.mu.Unlock()
		return nil
	}
	close(s.shutdown)
	_ = s.conn.Close()
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.conn = nil
	s.mu.Unlock()
	return nil
}

// readLoop copies datagrams from the socket into the ring
func (s *Source) readLoop(conn *net.UDPConn, shutdown <-chan struct{}) {
	buf := make([]byte, maxDatagram)

	for {
		select {
		case <-shutdown:
			return
		default:
		}

		// Deadline lets the loop observe shutdown periodically
		_ = conn.SetReadDeadline(time.Now().Add(readDeadline))

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-shutdown:
				return
			default:
			}

			s.errors.Add(1)
			if s.metrics != nil {
				s.metrics.socketErrors.Inc()
			}
			if !errors.IsTransient(err) {
				s.logger.Error("UDP read failed", "error", err)
				return
			}
			continue
		}

		s.received.Add(1)
		if s.metrics != nil {
			s.metrics.packetsReceived.Inc()
			s.metrics.bytesReceived.Add(float64(n))
			s.metrics.lastActivity.Set(float64(time.Now().Unix()))
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		_ = s.ring.Write(data)
	}
}

// forwardLoop drains the ring into the dispatch loop's data channel
func (s *Source) forwardLoop(out chan<- []byte, shutdown <-chan struct{}) {
	for {
		select {
		case <-shutdown:
			return
		case <-s.ring.Ready():
		}

		for batch := s.ring.ReadBatch(forwardBatchSize); len(batch) > 0; batch = s.ring.ReadBatch(forwardBatchSize) {
			for _, data := range batch {
				select {
				case out <- data:
				case <-shutdown:
					return
				}
			}
		}
	}
}

// Stats reports received datagrams, buffer drops and socket errors
func (s *Source) Stats() (received, dropped, errs int64) {
	return s.received.Load(), s.ring.Stats().Drops, s.errors.Load()
}
