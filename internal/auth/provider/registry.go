package provider

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownProvider = errors.New("unknown oauth provider")

// Registry holds all configured OAuth providers and allows
// lookup by provider id. It performs no auth logic itself.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry registers the given adapters by id.
// Adapter ids must be unique; a later duplicate replaces an earlier one.
func NewRegistry(list ...Adapter) *Registry {
	m := make(map[string]Adapter, len(list))
	for _, a := range list {
		m[a.Settings().ID] = a
	}
	return &Registry{adapters: m}
}

// Get returns the adapter by id or ErrUnknownProvider.
func (r *Registry) Get(id string) (Adapter, error) {
	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	return a, nil
}

// IDs returns the registered provider ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
