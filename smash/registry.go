package smash

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds named schemas so declarations loaded from files can refer to
// each other.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]*Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]*Schema)}
}

// Define creates and registers a root schema. It fails if name is taken.
func (r *Registry) Define(name string) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[name]; exists {
		return nil, fmt.Errorf("smash: schema %q already defined", name)
	}
	s := NewSchema(name)
	r.schemas[name] = s
	return s, nil
}

// Extend registers name as a subtype of the registered schema parent.
func (r *Registry) Extend(name, parent string) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[name]; exists {
		return nil, fmt.Errorf("smash: schema %q already defined", name)
	}
	p, ok := r.schemas[parent]
	if !ok {
		return nil, fmt.Errorf("smash: schema %q extends unknown schema %q", name, parent)
	}
	s := p.Extend(name)
	r.schemas[name] = s
	return s, nil
}

// Register adds an existing schema under its own name.
func (r *Registry) Register(s *Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[s.Name()]; exists {
		return fmt.Errorf("smash: schema %q already defined", s.Name())
	}
	r.schemas[s.Name()] = s
	return nil
}

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// MustLookup panics when name is not registered.
func (r *Registry) MustLookup(name string) *Schema {
	s, ok := r.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("smash: schema %q not registered", name))
	}
	return s
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.schemas)
}
