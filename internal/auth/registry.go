package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Factory builds a configured provider.
type Factory func(ctx context.Context) (Provider, error)

// Registry maps provider type names to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry for auth providers.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under a name.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[strings.ToLower(name)] = factory
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Build constructs the provider registered for name.
func (r *Registry) Build(ctx context.Context, name string) (Provider, error) {
	factory, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown auth provider %q (available: %s)", name, strings.Join(r.Names(), ", "))
	}
	provider, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("init %s provider: %w", name, err)
	}
	return provider, nil
}
