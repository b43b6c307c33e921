// Package schema provides a registry for managing model metadata
package schema

import (
	"fmt"
	"sync"
)

// Registry manages all registered models. Registration is expected to
// happen once at startup; after that the registry is read-only and safe
// for concurrent use by any number of query builds.
type Registry struct {
	models map[string]*Model
	mu     sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*Model),
	}
}

// Register adds a model to the registry. Duplicate names are rejected.
func (r *Registry) Register(model *Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[model.Name]; exists {
		return fmt.Errorf("model %s is already registered", model.Name)
	}

	r.models[model.Name] = model
	return nil
}

// Get retrieves a model by name
func (r *Registry) Get(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.models[name]
	return m, exists
}

// List returns the names of all registered models
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	return names
}

// ValidateAll verifies cross-model references: every relationship column
// must name a registered model, and that model's primary key must exist.
// Called once after all registrations, before the registry is handed to
// the query layer.
func (r *Registry) ValidateAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.models {
		for _, c := range m.Columns {
			if c.Model == "" {
				continue
			}
			related, ok := r.models[c.Model]
			if !ok {
				return fmt.Errorf("model %s: column %s references unregistered model %s", m.Name, c.Property, c.Model)
			}
			if related.PrimaryKey() == nil {
				return fmt.Errorf("model %s: related model %s has no primary key", m.Name, c.Model)
			}
		}
	}
	return nil
}
