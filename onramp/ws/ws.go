// Package ws provides the WebSocket onramp. It accepts client connections
// on a single path and turns every text or binary frame into one raw
// message.
package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/metric"
	"github.com/jaysonsantos/tremor-runtime/onramp"
)

// Type is the registry name of the WebSocket onramp.
const Type = "ws"

// Config holds configuration for the WebSocket onramp
type Config struct {
	Host string `yaml:"host"`
	// Port 0 selects an ephemeral port.
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
	// MaxMessageSize bounds a single frame; larger frames close the connection.
	MaxMessageSize    int64 `yaml:"max_message_size"`
	ReadBufferSize    int   `yaml:"read_buffer_size"`
	WriteBufferSize   int   `yaml:"write_buffer_size"`
	EnableCompression bool  `yaml:"enable_compression"`
}

// DefaultConfig returns the WebSocket onramp defaults
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8001,
		Path:            "/",
		MaxMessageSize:  1 << 20,
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return configErr(fmt.Sprintf("invalid port %d", c.Port))
	case c.Path == "" || c.Path[0] != '/':
		return configErr(fmt.Sprintf("path %q must start with '/'", c.Path))
	case c.MaxMessageSize <= 0:
		return configErr("max_message_size must be positive")
	case c.ReadBufferSize < 0 || c.WriteBufferSize < 0:
		return configErr("buffer sizes must not be negative")
	}
	return nil
}

func configErr(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%s: %w", msg, errors.ErrConfig), "ws", "Validate", "config validation")
}

type wsMetrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	framesReceived    prometheus.Counter
	readErrors        prometheus.Counter
}

func newMetrics(registry *metric.MetricsRegistry, service string) *wsMetrics {
	if registry == nil {
		return nil
	}
	labels := prometheus.Labels{"onramp": service}
	m := &wsMetrics{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metric.Namespace, Subsystem: "ws", Name: "connections_active",
			Help: "Open WebSocket connections", ConstLabels: labels,
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: "ws", Name: "connections_total",
			Help: "Accepted WebSocket connections", ConstLabels: labels,
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: "ws", Name: "frames_received_total",
			Help: "Data frames received", ConstLabels: labels,
		}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metric.Namespace, Subsystem: "ws", Name: "read_errors_total",
			Help: "Connections closed by a read error", ConstLabels: labels,
		}),
	}

	serviceName := "onramp." + service
	registry.RegisterGauge(serviceName, "ws_connections_active", m.connectionsActive)
	registry.RegisterCounter(serviceName, "ws_connections_total", m.connectionsTotal)
	registry.RegisterCounter(serviceName, "ws_frames_received", m.framesReceived)
	registry.RegisterCounter(serviceName, "ws_read_errors", m.readErrors)
	return m
}

// Source is a WebSocket server
type Source struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *wsMetrics
	upgrader websocket.Upgrader

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	out      chan<- []byte
	shutdown chan struct{}
	conns    map[*websocket.Conn]struct{}
	wg       sync.WaitGroup

	frames atomic.Int64
}

var _ onramp.Source = (*Source)(nil)

// New creates a WebSocket source
func New(cfg Config, name string, deps onramp.Deps) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "ws-onramp")
	}
	return &Source{
		cfg:     cfg,
		logger:  logger,
		metrics: newMetrics(deps.MetricsRegistry, name),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    cfg.ReadBufferSize,
			WriteBufferSize:   cfg.WriteBufferSize,
			EnableCompression: cfg.EnableCompression,
			CheckOrigin:       func(*http.Request) bool { return true },
		},
	}, nil
}

// Register adds the WebSocket onramp to a registry
func Register(r *onramp.Registry) error {
	return r.RegisterFactory(onramp.Registration{
		Name:        Type,
		Description: "WebSocket server",
		Factory: func(oc config.OnrampConfig, deps onramp.Deps) (onramp.Source, error) {
			cfg := DefaultConfig()
			if err := config.DecodeStrict(oc.Config, &cfg); err != nil {
				return nil, err
			}
			return New(cfg, oc.ID, deps)
		},
	})
}

// Start binds the listener and serves WebSocket upgrades in the background
func (s *Source) Start(_ context.Context, out chan<- []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return nil
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "ws", "Start",
			fmt.Sprintf("listen on %s", addr))
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleUpgrade)

	s.listener = ln
	s.out = out
	s.shutdown = make(chan struct{})
	s.conns = make(map[*websocket.Conn]struct{})
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("WebSocket server stopped", "error", err)
		}
	}()

	s.logger.Info("WebSocket onramp listening", "addr", ln.Addr().String(), "path", s.cfg.Path)
	return nil
}

// Addr returns the bound address, or nil before Start
func (s *Source) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Source) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	shutdown, out := s.shutdown, s.out
	if shutdown == nil {
		s.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		s.logger.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.MaxMessageSize)

	s.mu.Lock()
	if s.shutdown == nil {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.connectionsActive.Inc()
		s.metrics.connectionsTotal.Inc()
	}
	go s.readLoop(conn, out, shutdown)
}

func (s *Source) readLoop(conn *websocket.Conn, out chan<- []byte, shutdown <-chan struct{}) {
	defer s.wg.Done()
	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.connectionsActive.Dec()
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-shutdown:
				default:
					s.logger.Debug("WebSocket read failed", "remote", conn.RemoteAddr().String(), "error", err)
					if s.metrics != nil {
						s.metrics.readErrors.Inc()
					}
				}
			}
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}

		s.frames.Add(1)
		if s.metrics != nil {
			s.metrics.framesReceived.Inc()
		}
		select {
		case out <- data:
		case <-shutdown:
			return
		}
	}
}

// Stop closes the listener and every client connection. Nothing is sent on
// out once Stop returns. Idempotent.
func (s *Source) Stop() error {
	s.mu.Lock()
	srv := s.server
	if srv == nil {
		s.mu.Unlock()
		return nil
	}
	close(s.shutdown)
	s.shutdown = nil
	s.server = nil
	s.listener = nil
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "onramp stopping"),
			time.Now().Add(time.Second))
		conn.Close()
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return errors.WrapTransient(err, "ws", "Stop", "shutdown server")
	}
	return nil
}

// Frames returns the number of data frames forwarded or pending
func (s *Source) Frames() int64 {
	return s.frames.Load()
}
