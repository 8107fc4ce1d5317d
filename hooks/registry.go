package hooks

import (
	"fmt"
	"sync"
)

// PluginFactory installs hooks into the broker.
type PluginFactory func(broker *Broker) error

// PluginDescriptor describes a plugin registered with the registry.
type PluginDescriptor struct {
	Name        string
	Description string
}

type registryEntry struct {
	desc    PluginDescriptor
	factory PluginFactory
}

// Registry keeps plugin factories that can be activated via configuration.
type Registry struct {
	mu      sync.RWMutex
	broker  *Broker
	entries map[string]registryEntry
}

// NewRegistry creates an empty plugin registry bound to a broker.
func NewRegistry(broker *Broker) *Registry {
	if broker == nil {
		broker = NewBroker()
	}
	return &Registry{
		broker:  broker,
		entries: make(map[string]registryEntry),
	}
}

// Broker returns the underlying broker associated with the registry.
func (r *Registry) Broker() *Broker {
	if r == nil {
		return nil
	}
	return r.broker
}

// Register registers a plugin factory.
func (r *Registry) Register(name string, desc PluginDescriptor, factory PluginFactory) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	if name == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("plugin already registered: %s", name)
	}
	r.entries[name] = registryEntry{desc: desc, factory: factory}
	return nil
}

// Load activates the requested plugins.
func (r *Registry) Load(names []string) error {
	if r == nil {
		return fmt.Errorf("registry is nil")
	}
	for _, name := range names {
		r.mu.RLock()
		entry, ok := r.entries[name]
		r.mu.RUnlock()
		if !ok {
			return fmt.Errorf("plugin not found: %s", name)
		}
		if err := entry.factory(r.broker); err != nil {
			return fmt.Errorf("plugin %s failed: %w", name, err)
		}
	}
	return nil
}

// Descriptor returns metadata registered under the provided name.
func (r *Registry) Descriptor(name string) (PluginDescriptor, bool) {
	if r == nil {
		return PluginDescriptor{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry.desc, ok
}
