package engine

import (
	"fmt"
	"sort"
)

// Registry is the process-wide read-only set of engine descriptors.
// Built once at startup and shared across requests without locking.
type Registry struct {
	byID  map[string]Descriptor
	order []string
}

// NewRegistry creates a Registry from descriptors.
// Iteration order is deterministic: priority ascending, then id.
func NewRegistry(descriptors []Descriptor) (*Registry, error) {
	byID := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if _, dup := byID[d.ID()]; dup {
			return nil, fmt.Errorf("duplicate engine id: %s", d.ID())
		}
		byID[d.ID()] = d
	}

	order := make([]string, 0, len(byID))
	for id := range byID {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := byID[order[i]], byID[order[j]]
		if a.Priority() != b.Priority() {
			return a.Priority() < b.Priority()
		}
		return a.ID() < b.ID()
	})

	return &Registry{byID: byID, order: order}, nil
}

// Get returns the descriptor for an engine id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// All returns every descriptor in deterministic order.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.order))
	for i, id := range r.order {
		out[i] = r.byID[id]
	}
	return out
}

// IDs returns every engine id in deterministic order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered engines.
func (r *Registry) Len() int { return len(r.byID) }
