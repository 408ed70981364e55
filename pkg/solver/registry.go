package solver

import (
	"sync"

	"github.com/nqba/qih/pkg/core"
)

// Registry holds zero-or-one primary (quantum-class) solver and an ordered
// list of classical fallback solvers. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	primary   Solver
	fallbacks []Solver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetPrimary installs the primary solver, replacing any previous one.
func (r *Registry) SetPrimary(s Solver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.primary = s
}

// AddFallback appends a classical fallback solver. Fallbacks are consulted
// in registration order.
func (r *Registry) AddFallback(s Solver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbacks = append(r.fallbacks, s)
}

// Primary returns the primary solver, or nil if none is registered.
func (r *Registry) Primary() Solver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary
}

// Fallback returns the first fallback solver supporting the operation, or
// nil if none does.
func (r *Registry) Fallback(operation string) Solver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.fallbacks {
		if s.Supports(operation) {
			return s
		}
	}
	return nil
}

// ByName returns the registered solver with the given name. The primary also
// answers to core.PreferPrimary.
func (r *Registry) ByName(name string) Solver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.primary != nil && (name == core.PreferPrimary || name == r.primary.Name()) {
		return r.primary
	}
	for _, s := range r.fallbacks {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Solvers returns all registered solvers, primary first.
func (r *Registry) Solvers() []Solver {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Solver, 0, len(r.fallbacks)+1)
	if r.primary != nil {
		out = append(out, r.primary)
	}
	out = append(out, r.fallbacks...)
	return out
}
