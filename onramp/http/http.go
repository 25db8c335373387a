// Package http provides the HTTP onramp.
//
// Every accepted request is rendered as a JSON document
//
//	{"path", "query_params", "actual_path", "path_params", "headers", "body", "method"}
//
// and pushed to the dispatch loop as one raw message, so the onramp's codec
// defaults to json. actual_path is the configured resource pattern the
// request matched and path_params holds its {name} captures. Requests are
// answered with 202 once queued and 503 when the loop is backed up.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/onramp"
)

// Type is the registry name of the HTTP onramp.
const Type = "http"

// Defaults
const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultMaxBodySize = 1 << 20
)

// Resource is a path pattern with the methods it accepts. Segments of the
// form {name} capture one path segment; a trailing {name}* captures the
// rest of the path.
type Resource struct {
	Method []string `yaml:"method"`
	Path   string   `yaml:"path"`
}

// Config holds configuration for the HTTP onramp
type Config struct {
	Host        string     `yaml:"host"`
	Port        int        `yaml:"port"`
	Resources   []Resource `yaml:"resources"`
	MaxBodySize int64      `yaml:"max_body_size"`
}

// DefaultConfig returns the HTTP onramp defaults
func DefaultConfig() Config {
	return Config{
		Host:        DefaultHost,
		Port:        DefaultPort,
		MaxBodySize: DefaultMaxBodySize,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.WrapInvalid(fmt.Errorf("invalid port %d: %w", c.Port, errors.ErrConfig),
			"http", "Validate", "port validation")
	}
	if c.MaxBodySize <= 0 {
		return errors.WrapInvalid(fmt.Errorf("max_body_size must be positive: %w", errors.ErrConfig),
			"http", "Validate", "body size validation")
	}
	for i, r := range c.Resources {
		if !strings.HasPrefix(r.Path, "/") {
			return errors.WrapInvalid(fmt.Errorf("resource %d: path %q must start with '/': %w", i, r.Path, errors.ErrConfig),
				"http", "Validate", "resource validation")
		}
		for _, m := range r.Method {
			if !knownMethod(m) {
				return errors.WrapInvalid(fmt.Errorf("resource %d: unsupported method %q: %w", i, m, errors.ErrConfig),
					"http", "Validate", "resource validation")
			}
		}
	}
	return nil
}

func knownMethod(m string) bool {
	switch strings.ToUpper(m) {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead:
		return true
	}
	return false
}

// Request is the document produced for every accepted request.
type Request struct {
	Path        string            `json:"path"`
	QueryParams string            `json:"query_params"`
	ActualPath  string            `json:"actual_path"`
	PathParams  map[string]string `json:"path_params"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
	Method      string            `json:"method"`
}

// Source is an HTTP listener
type Source struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	out      chan<- []byte
	closed   bool
}

var _ onramp.Source = (*Source)(nil)

// New creates an HTTP source
func New(cfg Config, deps onramp.Deps) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", "http-onramp")
	}
	return &Source{cfg: cfg, logger: logger}, nil
}

// Register adds the HTTP onramp to a registry
func Register(r *onramp.Registry) error {
	return r.RegisterFactory(onramp.Registration{
		Name:        Type,
		Description: "HTTP listener turning requests into JSON documents",
		Factory: func(oc config.OnrampConfig, deps onramp.Deps) (onramp.Source, error) {
			cfg := DefaultConfig()
			if err := config.DecodeStrict(oc.Config, &cfg); err != nil {
				return nil, err
			}
			return New(cfg, deps)
		},
	})
}

// Start binds the listener and serves in the background
func (s *Source) Start(_ context.Context, out chan<- []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "http-onramp", "Start", "start")
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.WrapFatal(errors.Mark(err, errors.ErrConfig), "http-onramp", "Start",
			fmt.Sprintf("bind %s", addr))
	}

	s.out = out
	s.closed = false
	s.listener = ln
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := s.server
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP onramp server stopped", "error", err)
		}
	}()

	s.logger.Info("HTTP onramp listening", "address", ln.Addr().String())
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

// Stop shuts the server down, waiting for in-flight requests
func (s *Source) Stop() error {
	s.mu.Lock()
	srv := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(ctx)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if err != nil {
		return errors.WrapTransient(err, "http-onramp", "Stop", "graceful shutdown")
	}
	return nil
}

// ServeHTTP implements http.Handler
func (s *Source) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actual, params, methods, matched := match(s.cfg.Resources, r.URL.Path)
	if matched && len(methods) > 0 && !methodAllowed(methods, r.Method) {
		w.Header().Set("Allow", strings.Join(methods, ", "))
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if !utf8.Valid(body) {
		http.Error(w, "request body must be UTF-8", http.StatusBadRequest)
		return
	}

	doc := Request{
		Path:        r.URL.Path,
		QueryParams: r.URL.RawQuery,
		ActualPath:  actual,
		PathParams:  params,
		Headers:     headers(r.Header),
		Body:        string(body),
		Method:      r.Method,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		http.Error(w, "encode request", http.StatusInternalServerError)
		return
	}

	if !s.offer(data) {
		w.Header().Set("Retry-After", "1")
		http.Error(w, "onramp busy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// offer queues data without blocking
func (s *Source) offer(data []byte) bool {
	s.mu.Lock()
	out, closed := s.out, s.closed
	s.mu.Unlock()
	if closed || out == nil {
		return false
	}

	select {
	case out <- data:
		return true
	default:
		return false
	}
}

func headers(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}

func methodAllowed(methods []string, method string) bool {
	for _, m := range methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

// match returns the first resource whose pattern matches path, with its
// captures. Unmatched paths yield an empty pattern and no params.
func match(resources []Resource, path string) (string, map[string]string, []string, bool) {
	for _, r := range resources {
		if params, ok := matchPattern(r.Path, path); ok {
			return r.Path, params, r.Method, true
		}
	}
	return "", map[string]string{}, nil, false
}

func matchPattern(pattern, path string) (map[string]string, bool) {
	pSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	segs := strings.Split(strings.Trim(path, "/"), "/")
	params := map[string]string{}

	for i, p := range pSegs {
		if name, ok := strings.CutSuffix(p, "}*"); ok && strings.HasPrefix(name, "{") && i == len(pSegs)-1 {
			if i >= len(segs) {
				return nil, false
			}
			params[name[1:]] = strings.Join(segs[i:], "/")
			return params, true
		}
		if i >= len(segs) {
			return nil, false
		}
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			if segs[i] == "" {
				return nil, false
			}
			params[p[1:len(p)-1]] = segs[i]
			continue
		}
		if p != segs[i] {
			return nil, false
		}
	}
	if len(segs) != len(pSegs) {
		return nil, false
	}
	return params, true
}
