package config

import (
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/tremorurl"
)

// Node error policies
const (
	// OnErrorDrop logs and counts a failing event, then continues.
	OnErrorDrop = "drop"
	// OnErrorFail stops the pipeline on the first failing event.
	OnErrorFail = "fail"
)

// Defaults
const (
	DefaultCodec           = "json"
	DefaultPipelineMailbox = 64
	DefaultMetricsPort     = 9898
	DefaultMetricsPath     = "/metrics"
)

// Config represents the complete runtime configuration
type Config struct {
	Onramps   []OnrampConfig   `yaml:"onramps"`
	Offramps  []OfframpConfig  `yaml:"offramps"`
	Pipelines []PipelineConfig `yaml:"pipelines"`
	Bindings  []BindingConfig  `yaml:"bindings"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// OnrampConfig declares a source
type OnrampConfig struct {
	ID            string    `yaml:"id"`
	Type          string    `yaml:"type"`
	Codec         string    `yaml:"codec"`
	Preprocessors []string  `yaml:"preprocessors"`
	Config        yaml.Node `yaml:"config"`
}

// OfframpConfig declares a sink
type OfframpConfig struct {
	ID     string    `yaml:"id"`
	Type   string    `yaml:"type"`
	Codec  string    `yaml:"codec"`
	Config yaml.Node `yaml:"config"`
}

// PipelineConfig declares a linear chain of operators
type PipelineConfig struct {
	ID      string       `yaml:"id"`
	Mailbox int          `yaml:"mailbox"`
	Nodes   []NodeConfig `yaml:"nodes"`
}

// NodeConfig declares one operator instance
type NodeConfig struct {
	ID      string    `yaml:"id"`
	Op      string    `yaml:"op"`
	OnError string    `yaml:"on_error"`
	Config  yaml.Node `yaml:"config"`
}

// BindingConfig connects a producer port to one or more consumer ports
type BindingConfig struct {
	From tremorurl.URL   `yaml:"from"`
	To   []tremorurl.URL `yaml:"to"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// DefaultMetricsConfig returns the metrics endpoint defaults
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled: false,
		Port:    DefaultMetricsPort,
		Path:    DefaultMetricsPath,
	}
}

// Default returns an empty configuration with every default applied
func Default() *Config {
	return &Config{Metrics: DefaultMetricsConfig()}
}

// ApplyDefaults fills in unset optional fields
func (c *Config) ApplyDefaults() {
	for i := range c.Onramps {
		if c.Onramps[i].Codec == "" {
			c.Onramps[i].Codec = DefaultCodec
		}
	}
	for i := range c.Offramps {
		if c.Offramps[i].Codec == "" {
			c.Offramps[i].Codec = DefaultCodec
		}
	}
	for i := range c.Pipelines {
		p := &c.Pipelines[i]
		if p.Mailbox == 0 {
			p.Mailbox = DefaultPipelineMailbox
		}
		for j := range p.Nodes {
			if p.Nodes[j].OnError == "" {
				p.Nodes[j].OnError = OnErrorDrop
			}
		}
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks structural consistency: ids, references and policies.
// Per-type sections are validated by the factories that decode them.
func (c *Config) Validate() error {
	onramps := make(map[string]bool)
	for i, o := range c.Onramps {
		if err := checkID(onramps, o.ID, fmt.Sprintf("onramps[%d]", i)); err != nil {
			return err
		}
		if o.Type == "" {
			return invalidf("onramp %s: type is required", o.ID)
		}
	}

	offramps := make(map[string]bool)
	for i, o := range c.Offramps {
		if err := checkID(offramps, o.ID, fmt.Sprintf("offramps[%d]", i)); err != nil {
			return err
		}
		if o.Type == "" {
			return invalidf("offramp %s: type is required", o.ID)
		}
	}

	pipelines := make(map[string]bool)
	for i, p := range c.Pipelines {
		if err := checkID(pipelines, p.ID, fmt.Sprintf("pipelines[%d]", i)); err != nil {
			return err
		}
		if p.Mailbox < 0 {
			return invalidf("pipeline %s: mailbox must not be negative", p.ID)
		}
		nodes := make(map[string]bool)
		for j, n := range p.Nodes {
			if err := checkID(nodes, n.ID, fmt.Sprintf("pipeline %s nodes[%d]", p.ID, j)); err != nil {
				return err
			}
			if n.Op == "" {
				return invalidf("pipeline %s node %s: op is required", p.ID, n.ID)
			}
			switch n.OnError {
			case "", OnErrorDrop, OnErrorFail:
			default:
				return invalidf("pipeline %s node %s: on_error must be %q or %q, got %q",
					p.ID, n.ID, OnErrorDrop, OnErrorFail, n.OnError)
			}
		}
	}

	for i, b := range c.Bindings {
		where := fmt.Sprintf("bindings[%d]", i)
		switch b.From.Type {
		case tremorurl.TypeOnramp:
			if !onramps[b.From.Artefact] {
				return invalidf("%s: unknown onramp %q", where, b.From.Artefact)
			}
		case tremorurl.TypePipeline:
			if !pipelines[b.From.Artefact] {
				return invalidf("%s: unknown pipeline %q", where, b.From.Artefact)
			}
		default:
			return invalidf("%s: from must be an onramp or pipeline, got %q", where, b.From.String())
		}
		if len(b.To) == 0 {
			return invalidf("%s: at least one destination is required", where)
		}
		for _, to := range b.To {
			switch to.Type {
			case tremorurl.TypePipeline:
				if !pipelines[to.Artefact] {
					return invalidf("%s: unknown pipeline %q", where, to.Artefact)
				}
			case tremorurl.TypeOfframp:
				if !offramps[to.Artefact] {
					return invalidf("%s: unknown offramp %q", where, to.Artefact)
				}
			default:
				return invalidf("%s: destination must be a pipeline or offramp, got %q", where, to.String())
			}
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		return invalidf("metrics.port %d out of range", c.Metrics.Port)
	}
	return nil
}

func checkID(seen map[string]bool, id, where string) error {
	if id == "" {
		return invalidf("%s: id is required", where)
	}
	if strings.ContainsAny(id, "/ ") {
		return invalidf("%s: id %q must not contain '/' or spaces", where, id)
	}
	if seen[id] {
		return invalidf("%s: duplicate id %q", where, id)
	}
	seen[id] = true
	return nil
}

func invalidf(format string, args ...any) error {
	return errors.WrapInvalid(
		fmt.Errorf(format+": %w", append(args, errors.ErrConfig)...),
		"Config", "Validate", "config validation")
}

// Onramp returns the onramp with the given id
func (c *Config) Onramp(id string) (OnrampConfig, bool) {
	for _, o := range c.Onramps {
		if o.ID == id {
			return o, true
		}
	}
	return OnrampConfig{}, false
}

// Pipeline returns the pipeline with the given id
func (c *Config) Pipeline(id string) (PipelineConfig, bool) {
	for _, p := range c.Pipelines {
		if p.ID == id {
			return p, true
		}
	}
	return PipelineConfig{}, false
}

// String returns the YAML representation of the config
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// SafeConfig provides thread-safe access to configuration
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

// NewSafeConfig creates a new thread-safe config wrapper
func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns the current configuration
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config
}

// Update atomically replaces the configuration after validation
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return invalidf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg
	return nil
}
