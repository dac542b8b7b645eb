package balancer

import (
	"fmt"
	"log/slog"

	"github.com/talgya/population-restorator/internal/allocate"
	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/territory"
)

// Territories reconciles every parent target against its children, top-down.
// A deficit is spread over the children by living area; a surplus is only
// reported, because finer-grained figures are trusted over coarser ones.
// Afterwards every inner node holds the sum of its children.
func (b *Balancer) Territories(tree *territory.Tree) error {
	return b.balanceTerritory(tree, tree.RootNode())
}

func (b *Balancer) balanceTerritory(tree *territory.Tree, t *territory.Territory) error {
	if t.IsLeaf() {
		return nil
	}
	children := tree.Children(t.ID)

	current := 0
	for _, c := range children {
		current += c.Population
	}

	switch {
	case current < t.Population:
		compensation := t.Population - current
		slog.Debug("compensating inner territories",
			"territory", t.Name, "people", compensation, "target", t.Population)

		weights := make([]float64, len(children))
		for i, c := range children {
			weights[i] = tree.TotalLivingArea(c.ID)
		}
		adj, err := allocate.Allocate(weights, compensation, b.rng)
		if err != nil {
			return fmt.Errorf("balance territory %q: %w", t.Name, err)
		}
		for i, c := range children {
			if c.Population+adj[i] < 0 {
				b.report.Add(diag.KindConstraint, c.Name,
					"territory %q got compensation %d and became negative while compensating %d people",
					c.Name, adj[i], compensation)
			}
			c.Population += adj[i]
		}
	case current > t.Population:
		b.report.Add(diag.KindConstraint, t.Name,
			"ignored compensation: inner territories hold %d people, more than territory %q target %d",
			current, t.Name, t.Population)
	default:
		slog.Debug("territory is balanced", "territory", t.Name)
	}

	for _, c := range children {
		if err := b.balanceTerritory(tree, c); err != nil {
			return err
		}
	}

	total := 0
	for _, c := range children {
		total += c.Population
	}
	t.Population = total
	return nil
}
