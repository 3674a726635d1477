package adapter

import (
	"fmt"

	"github.com/phume/amlwatch/internal/config"
	"github.com/phume/amlwatch/internal/ports"
)

// Registry maps source kinds to their adapter implementations, keeping the
// coordinator source-agnostic.
type Registry struct {
	adapters map[config.SourceKind]ports.SourceAdapter
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: map[config.SourceKind]ports.SourceAdapter{}}
}

// Register adds or replaces the adapter for its kind.
func (r *Registry) Register(a ports.SourceAdapter) {
	if r.adapters == nil {
		r.adapters = map[config.SourceKind]ports.SourceAdapter{}
	}
	r.adapters[a.Kind()] = a
}

// Resolve returns the adapter for a kind or an error if none is registered.
func (r *Registry) Resolve(kind config.SourceKind) (ports.SourceAdapter, error) {
	if a, ok := r.adapters[kind]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("no adapter registered for kind %q", kind)
}
