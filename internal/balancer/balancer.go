// Package balancer reconciles territory population targets down the hierarchy
// and spreads each leaf target over its dwellings by living area.
package balancer

import (
	"log/slog"
	"math/rand/v2"

	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/territory"
)

// DefaultMinLivingArea is the total leaf living area below which dwellings are
// considered uninhabitable.
const DefaultMinLivingArea = 5.0

// Balancer owns the generator and issue report for one balancing run.
type Balancer struct {
	rng           *rand.Rand
	report        *diag.Report
	minLivingArea float64
}

// Option configures a Balancer.
type Option func(*Balancer)

// WithMinLivingArea overrides DefaultMinLivingArea.
func WithMinLivingArea(area float64) Option {
	return func(b *Balancer) { b.minLivingArea = area }
}

// New creates a Balancer.
func New(rng *rand.Rand, report *diag.Report, opts ...Option) *Balancer {
	b := &Balancer{rng: rng, report: report, minLivingArea: DefaultMinLivingArea}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Balance runs territory balancing followed by house balancing.
func (b *Balancer) Balance(tree *territory.Tree) error {
	slog.Info("balancing city territories", "territories", tree.Len())
	if err := b.Territories(tree); err != nil {
		return err
	}
	slog.Info("balancing city houses", "dwellings", len(tree.Dwellings(tree.Root)))
	return b.Houses(tree)
}
