package offramp

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jaysonsantos/tremor-runtime/config"
	"github.com/jaysonsantos/tremor-runtime/errors"
)

// Factory builds a sink from an offramp declaration. Its type-specific
// section is cfg.Config.
type Factory func(cfg config.OfframpConfig, deps Deps) (Sink, error)

// Registration holds a factory and its metadata
type Registration struct {
	Name        string
	Description string
	Factory     Factory
}

// Registry maps offramp type names to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Registration
}

// NewRegistry creates a registry holding the built-in sinks
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Registration)}
	_ = r.RegisterFactory(Registration{Name: StdoutType, Description: "writes one record per line to stdout", Factory: newStdoutFromConfig})
	_ = r.RegisterFactory(Registration{Name: FileType, Description: "appends one record per line to a file", Factory: newFileFromConfig})
	_ = r.RegisterFactory(Registration{Name: BlackholeType, Description: "discards events, measuring latency", Factory: newBlackholeFromConfig})
	return r
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
		return errors.WrapInvalid(fmt.Errorf("offramp type %q already registered: %w", reg.Name, errors.ErrConfig),
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
		return nil, errors.WrapFatal(fmt.Errorf("offramp type %q: %w", name, errors.ErrUnknownArtefact),
			"Registry", "Lookup", "factory resolution")
	}
	return reg.Factory, nil
}

// Create builds the sink declared by cfg
func (r *Registry) Create(cfg config.OfframpConfig, deps Deps) (Sink, error) {
	factory, err := r.Lookup(cfg.Type)
	if err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("offramp", cfg.ID, "type", cfg.Type)

	sink, err := factory(cfg, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Registry", "Create", fmt.Sprintf("offramp %q", cfg.ID))
	}
	return sink, nil
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

// Default is the process-wide offramp registry.
var Default = NewRegistry()
