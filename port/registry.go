package port

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor builds a new Port of a named service type from request args.
type Constructor func(args any) (Port, error)

// Registry maps service names to port constructors. The Port Manager
// consults it for port and bindport requests. Thread-safe for concurrent
// access.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a named constructor.
// Returns ErrServiceExists if the name is taken; use Replace to update it.
func (r *Registry) Register(service string, ctor Constructor) error {
	if service == "" {
		return ErrEmptyService
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[service]; exists {
		return fmt.Errorf("%w: %s", ErrServiceExists, service)
	}

	r.constructors[service] = ctor
	return nil
}

// Replace updates the constructor for an existing service.
func (r *Registry) Replace(service string, ctor Constructor) error {
	if service == "" {
		return ErrEmptyService
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[service]; !exists {
		return fmt.Errorf("%w: %s", ErrServiceNotFound, service)
	}

	r.constructors[service] = ctor
	return nil
}

// New constructs a port of the named service.
func (r *Registry) New(service string, args any) (Port, error) {
	r.mu.RLock()
	ctor, exists := r.constructors[service]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, service)
	}

	p, err := ctor(args)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s port: %w", service, err)
	}
	return p, nil
}

// List returns the registered service names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
