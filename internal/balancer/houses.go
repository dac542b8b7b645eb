package balancer

import (
	"fmt"
	"log/slog"

	"github.com/talgya/population-restorator/internal/allocate"
	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/territory"
)

// Houses sets dwelling populations so every leaf matches its target.
// Existing dwelling populations are kept and only the difference is sampled.
func (b *Balancer) Houses(tree *territory.Tree) error {
	for _, leaf := range tree.Leaves() {
		if err := b.balanceHouses(tree, leaf); err != nil {
			return err
		}
	}
	return nil
}

func (b *Balancer) balanceHouses(tree *territory.Tree, t *territory.Territory) error {
	if len(t.Dwellings) == 0 {
		if t.Population != 0 {
			b.report.Add(diag.KindUnattainable, t.Name,
				"territory %q has no houses for %d people", t.Name, t.Population)
		}
		return nil
	}

	area := tree.TotalLivingArea(t.ID)
	if area < b.minLivingArea {
		if t.Population != 0 {
			b.report.Add(diag.KindUnattainable, t.Name,
				"houses (%d) have no living area, skipping requested %d people for territory %q",
				len(t.Dwellings), t.Population, t.Name)
		}
		for _, d := range t.Dwellings {
			d.Population = 0
		}
		return nil
	}

	slog.Debug("balancing buildings population",
		"territory", t.Name, "houses", len(t.Dwellings), "living_area", area, "target", t.Population)

	current := 0
	for _, d := range t.Dwellings {
		current += d.Population
	}
	compensation := t.Population - current

	weights := make([]float64, len(t.Dwellings))
	for i, d := range t.Dwellings {
		weights[i] = d.LivingArea
	}
	adj, err := allocate.Allocate(weights, compensation, b.rng)
	if err != nil {
		return fmt.Errorf("balance houses of %q: %w", t.Name, err)
	}
	for i, d := range t.Dwellings {
		d.Population += adj[i]
		if d.Population < 0 {
			b.report.Add(diag.KindConstraint, t.Name,
				"house %d population became negative (%d) while compensating %d people",
				d.ID, d.Population, compensation)
		}
	}
	return nil
}
