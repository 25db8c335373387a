package onramp

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
)

// Factory builds a source from an onramp declaration. Its type-specific
// section is cfg.Config.
type Factory func(cfg config.OnrampConfig, deps Deps) (Source, error)

// Registration holds a factory and its metadata
type Registration struct {
	Name        string
	Description string
	Factory     Factory
}

// Registry maps onramp type names to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Registration
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Registration)}
}

// RegisterFactory adds a factory. Duplicate names are rejected.
func (r *Registry) RegisterFactory(reg Registration) error {
	if reg.Name == "" || reg.Factory == nil {
		return errors.WrapInvalid(fmt.Errorf("name and factory are required: %w", errors.ErrConfig),
			"Registry", "RegisterFactory", "registration check")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[reg.Name]; exists {
		return errors.WrapInvalid(fmt.Errorf("onramp type %q already registered: %w", reg.Name, errors.ErrConfig),
			"Registry", "RegisterFactory", "duplicate check")
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
		return nil, errors.WrapFatal(fmt.Errorf("onramp type %q: %w", name, errors.ErrUnknownArtefact),
			"Registry", "Lookup", "factory resolution")
	}
	return reg.Factory, nil
}

// Create builds the source declared by cfg
func (r *Registry) Create(cfg config.OnrampConfig, deps Deps) (Source, error) {
	factory, err := r.Lookup(cfg.Type)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("onramp", cfg.ID, "type", cfg.Type)

	src, err := factory(cfg, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", fmt.Sprintf("onramp %q", cfg.ID))
	}
	return src, nil
}

// Names lists registered types in sorted order
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

// Default is the process-wide onramp registry.
var Default = NewRegistry()
