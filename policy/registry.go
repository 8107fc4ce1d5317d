package policy

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps policy names to factories so callers can select a strategy
// by configuration instead of a compile-time constructor.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a named factory. Registering an existing name is an error so
// a misconfigured plugin cannot silently shadow a built-in.
func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("policy %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// ForName returns the factory registered under name.
func (r *Registry) ForName(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown policy %q", name)
	}
	return f, nil
}

// Names lists registered policy names in sorted order.
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

var defaultRegistry = NewRegistry()

func init() {
	defaultRegistry.Register("adaptive", NewAdaptiveFactory())
	defaultRegistry.Register("fixed", NewFixedCycleFactory())
}

// Register adds a named factory to the default registry.
func Register(name string, f Factory) error {
	return defaultRegistry.Register(name, f)
}

// ForName looks a factory up in the default registry.
func ForName(name string) (Factory, error) {
	return defaultRegistry.ForName(name)
}

// Names lists the default registry's policies.
func Names() []string {
	return defaultRegistry.Names()
}
