// Package strategy defines the PairStrategy interface for pair trading
// strategies and provides a Registry for managing multiple implementations.
package strategy

import (
	"context"
	"sort"

	"pairdesk/internal/domain"
)

// PairStrategy is the interface that all pair trading strategies must
// implement.
type PairStrategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Positions maps the price ratio A/B of a pair to one position per
	// observation. The result has the same length as ratio.
	Positions(ctx context.Context, ratio []float64) ([]domain.Position, error)
}

// Registry holds a named collection of strategies for lookup and enumeration.
type Registry struct {
	strategies map[string]PairStrategy
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		strategies: make(map[string]PairStrategy),
	}
}

// Register adds a strategy to the registry, keyed by its Name().
func (r *Registry) Register(s PairStrategy) {
	r.strategies[s.Name()] = s
}

// Get retrieves a strategy by name. The second return value indicates whether
// the strategy was found.
func (r *Registry) Get(name string) (PairStrategy, bool) {
	s, ok := r.strategies[name]
	return s, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
