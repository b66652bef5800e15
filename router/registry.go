package router

import (
	"fmt"
	"sync"
)

// Registry holds the ordered set of candidate backends. Iteration order is
// insertion order and is what tie-breaking falls back to.
//
// A decision cycle copies the backend list once, at COLLECT, so Register and
// Deregister take effect from the next cycle and never change a cycle in flight.
type Registry struct {
	mu       sync.RWMutex
	backends []*Backend
}

// NewRegistry creates a registry pre-populated with backends, in order.
func NewRegistry(backends ...*Backend) (*Registry, error) {
	r := &Registry{}
	for _, b := range backends {
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// List returns all registered backends in insertion order.
func (r *Registry) List() []*Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make([]*Backend, len(r.backends))
	copy(cp, r.backends)
	return cp
}

// Len returns the number of registered backends.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

// Get returns the backend with the given name.
func (r *Registry) Get(name string) (*Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.backends {
		if b.Name == name {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrBackendNotFound, name)
}

// Register appends a backend. Names must be unique and non-empty.
func (r *Registry) Register(b *Backend) error {
	if b == nil || b.Name == "" {
		return fmt.Errorf("register: backend name must not be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.backends {
		if existing.Name == b.Name {
			return fmt.Errorf("%w: %q", ErrBackendExists, b.Name)
		}
	}
	r.backends = append(r.backends, b)
	return nil
}

// Deregister removes the named backend, preserving the order of the rest.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.backends {
		if b.Name == name {
			r.backends = append(r.backends[:i:i], r.backends[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrBackendNotFound, name)
}
