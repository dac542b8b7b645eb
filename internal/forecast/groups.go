package forecast

import (
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/talgya/population-restorator/internal/allocate"
	"github.com/talgya/population-restorator/internal/cohort"
	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/diag"
)

// RebalanceGroups redraws primary and then additional group cells that
// deviate strongly from their statistical expectation. Age and sex totals of
// every dwelling are preserved.
func (r *Rebalancer) RebalanceGroups(t *cohort.Table) error {
	if err := r.check(t); err != nil {
		return err
	}
	return t.Update(func(tx *cohort.Tx) error {
		for h := 0; h < t.Len(); h++ {
			if err := r.primaryGroups(tx, h); err != nil {
				return err
			}
		}
		for h := 0; h < t.Len(); h++ {
			if err := r.additionalGroups(tx, h); err != nil {
				return err
			}
		}
		return nil
	})
}

// deviates reports whether current is more than twice as large as expected or
// well under half of it.
func deviates(current int, expected float64) bool {
	c := float64(current)
	return c > 2*expected || c+2 < expected/2
}

// clamp picks the corrected value for a deviating cell: with even odds either
// the rounded-up 1.5× bound on the deviating side or the expectation itself.
func (r *Rebalancer) clamp(current int, expected float64) int {
	bound := expected / 1.5
	if float64(current) > 2*expected {
		bound = expected * 1.5
	}
	if r.rng.IntN(2) == 1 {
		return int(math.Ceil(bound))
	}
	return int(math.Floor(expected))
}

func (r *Rebalancer) primaryGroups(tx *cohort.Tx, h int) error {
	cells := tx.Cells(h)
	total := cells.Sum(0, r.primary)
	if total == 0 {
		return nil
	}
	house := tx.Table().Houses()[h].ID
	for age := 0; age < r.ages; age++ {
		for _, s := range demography.Sexes {
			for g := 0; g < r.primary; g++ {
				expected := float64(total) * r.shares[cells.Index(g, s, age)]
				current := cells.At(g, s, age)
				if !deviates(current, expected) {
					continue
				}
				needed := r.clamp(current, expected)
				subj := fmt.Sprintf("house %d/%s/%d/group %d", house, s, age, r.dist.Primary[g].ID)
				var err error
				switch {
				case needed < current:
					err = r.primarySurplus(cells, subj, g, s, age, current-needed)
				case needed > current:
					err = r.primaryDeficit(cells, subj, g, s, age, needed-current)
				}
				if err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// primarySurplus moves n people of group g to the other primary groups that
// are statistically possible at this sex and age.
func (r *Rebalancer) primarySurplus(cells demography.Cells, subj string, g int, s demography.Sex, age, n int) error {
	weights := make([]float64, r.primary)
	for other := 0; other < r.primary; other++ {
		if other != g {
			weights[other] = r.shares[cells.Index(other, s, age)]
		}
	}
	if floats.Sum(weights) <= 0 {
		r.report.Add(diag.KindConstraint, subj, "no other group can take %d people", n)
		return nil
	}
	moves, err := allocate.Allocate(weights, n, r.rng)
	if err != nil {
		return err
	}
	for other, v := range moves {
		cells.Add(other, s, age, v)
	}
	cells.Add(g, s, age, -n)
	return nil
}

// primaryDeficit brings up to n people of the same sex and age into group g
// from the other primary groups, weighted by their size.
func (r *Rebalancer) primaryDeficit(cells demography.Cells, subj string, g int, s demography.Sex, age, n int) error {
	weights := make([]float64, r.primary)
	available := 0
	for other := 0; other < r.primary; other++ {
		if other != g {
			weights[other] = float64(cells.At(other, s, age))
			available += cells.At(other, s, age)
		}
	}
	if available == 0 {
		r.report.Add(diag.KindConstraint, subj, "no other group can give %d people", n)
		return nil
	}
	n = min(n, available)
	draws, err := allocate.Allocate(weights, n, r.rng)
	if err != nil {
		return err
	}
	moved := 0
	for other, v := range draws {
		v = min(v, cells.At(other, s, age))
		if v > 0 {
			cells.Add(other, s, age, -v)
			moved += v
		}
	}
	cells.Add(g, s, age, moved)
	return nil
}

// additionalGroups redraws additional memberships with the same deviation
// rule as primary groups. A group's expectation in a cell is the dwelling
// population times the group probability times its sex-age probability.
// Memberships are also capped by the people living in the cell.
func (r *Rebalancer) additionalGroups(tx *cohort.Tx, h int) error {
	extra := len(r.dist.Additional)
	if extra == 0 {
		return nil
	}
	cells := tx.Cells(h)
	total := float64(cells.Sum(0, r.primary))
	for age := 0; age < r.ages; age++ {
		for _, s := range demography.Sexes {
			people := cells.SexAge(0, r.primary, s, age)
			for k := 0; k < extra; k++ {
				if v := cells.At(r.primary+k, s, age); v > people {
					cells.Set(r.primary+k, s, age, people)
				}
			}
			if people == 0 {
				continue
			}

			for k, g := range r.dist.Additional {
				expected := total * g.Probability * g.Distribution.At(s, age)
				current := cells.At(r.primary+k, s, age)
				if !deviates(current, expected) {
					continue
				}
				needed := min(r.clamp(current, expected), people)
				if needed >= current {
					cells.Set(r.primary+k, s, age, needed)
					continue
				}
				if err := r.additionalSurplus(cells, k, s, age, people, current-needed); err != nil {
					return err
				}
				cells.Set(r.primary+k, s, age, needed)
			}
		}
	}
	return nil
}

// additionalSurplus hands n memberships of group k to other additional groups
// open to this sex and age, as long as they have members to spare.
func (r *Rebalancer) additionalSurplus(cells demography.Cells, k int, s demography.Sex, age, people, n int) error {
	weights := make([]float64, len(r.dist.Additional))
	for other := range weights {
		if other != k && cells.At(r.primary+other, s, age) < people {
			weights[other] = r.addW[s][age][other]
		}
	}
	if floats.Sum(weights) <= 0 {
		slog.Debug("dropping additional memberships", "group", r.dist.Additional[k].ID, "sex", s.String(), "age", age, "count", n)
		return nil
	}
	moves, err := allocate.Allocate(weights, n, r.rng)
	if err != nil {
		return err
	}
	for other, v := range moves {
		room := people - cells.At(r.primary+other, s, age)
		if v = min(v, room); v > 0 {
			cells.Add(r.primary+other, s, age, v)
		}
	}
	return nil
}
