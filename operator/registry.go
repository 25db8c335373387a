package operator

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jaysonsantos/tremor-runtime/errors"
	"github.com/jaysonsantos/tremor-runtime/metric"
)

// NodeConfig describes one operator instance in a pipeline.
type NodeConfig struct {
	// ID is unique within the pipeline.
	ID string
	// Type is the registry name, e.g. "generic::wal".
	Type string
	// Config is the operator-specific section, decoded by the factory.
	Config yaml.Node
}

// Deps carries runtime dependencies into factories.
type Deps struct {
	Pipeline        string
	Logger          *slog.Logger
	MetricsRegistry *metric.MetricsRegistry
}

// Factory builds an operator from its configuration. Factories perform all
// resource acquisition so that construction failures surface before the
// pipeline starts.
type Factory func(cfg NodeConfig, deps Deps) (Operator, error)

// Registration holds a factory and its metadata
type Registration struct {
	Name        string
	Description string
	Factory     Factory
}

// Registry maps operator type names to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Registration
}

// NewRegistry creates a registry holding the built-in operators
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Registration)}
	_ = r.RegisterFactory(Registration{
		Name:        "passthrough",
		Description: "forwards events unchanged",
		Factory:     newPassthrough,
	})
	_ = r.RegisterFactory(Registration{
		Name:        BatchType,
		Description: "groups events into batch events",
		Factory:     newBatchFromConfig,
	})
	return r
}

// RegisterFactory adds a factory. Duplicate names are rejected.
func (r *Registry) RegisterFactory(reg Registration) error {
	if reg.Name == "" || reg.Factory == nil {
		return errors.WrapInvalid(
			fmt.Errorf("name and factory are required: %w", errors.ErrConfig),
			"Registry", "RegisterFactory", "registration validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[reg.Name]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("operator %q is already registered: %w", reg.Name, errors.ErrConfig),
			"Registry", "RegisterFactory", "duplicate factory check")
	}
	r.factories[reg.Name] = reg
	return nil
}

// Lookup returns the factory registered under name
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	reg, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.WrapFatal(
			fmt.Errorf("operator %q: %w", name, errors.ErrUnknownArtefact),
			"Registry", "Lookup", "operator resolution")
	}
	return reg.Factory, nil
}

// Create builds the operator described by cfg
func (r *Registry) Create(cfg NodeConfig, deps Deps) (Operator, error) {
	factory, err := r.Lookup(cfg.Type)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("node", cfg.ID, "op", cfg.Type)

	op, err := factory(cfg, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", fmt.Sprintf("construct node %s", cfg.ID))
	}
	return op, nil
}

// Names lists registered operator types in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default is the process-wide registry used by Register and Lookup.
var Default = NewRegistry()

// Register adds a factory to the default registry
func Register(name string, factory Factory) error {
	return Default.RegisterFactory(Registration{Name: name, Factory: factory})
}

// Lookup resolves a factory from the default registry
func Lookup(name string) (Factory, error) {
	return Default.Lookup(name)
}
