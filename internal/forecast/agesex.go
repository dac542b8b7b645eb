package forecast

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/population-restorator/internal/allocate"
	"github.com/talgya/population-restorator/internal/cohort"
	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/diag"
)

// CorrectAgeSex adds or removes primary group members so that every age and
// sex total matches men and women. A table that already matches is unchanged.
func (r *Rebalancer) CorrectAgeSex(t *cohort.Table, men, women []int) error {
	if len(men) != t.Ages() || len(women) != t.Ages() {
		return diag.Integrityf("target curves have %d/%d ages, table has %d", len(men), len(women), t.Ages())
	}
	return t.Update(func(tx *cohort.Tx) error {
		for age := 0; age < t.Ages(); age++ {
			if err := r.correct(tx, demography.Male, age, men[age]); err != nil {
				return err
			}
			if err := r.correct(tx, demography.Female, age, women[age]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Rebalancer) correct(tx *cohort.Tx, s demography.Sex, age, target int) error {
	if target < 0 {
		r.report.Add(diag.KindConstraint, subject(s, age), "target %d is negative, using 0", target)
		target = 0
	}
	for try := 0; try < r.tries; try++ {
		current := tx.PrimaryTotal(s, age)
		if current == target {
			return nil
		}
		slog.Debug("correcting cohort", "sex", s.String(), "age", age, "from", current, "to", target)
		var err error
		if current < target {
			err = r.increase(tx, s, age, target-current)
		} else {
			err = r.decrease(tx, s, age, current-target)
		}
		if errors.Is(err, allocate.ErrNoBuckets) {
			r.report.Add(diag.KindUnattainable, subject(s, age), "no dwelling can take %s of age %d", s, age)
			return nil
		}
		if err != nil {
			return err
		}
	}
	if current := tx.PrimaryTotal(s, age); current != target {
		r.report.Add(diag.KindRetryExhausted, subject(s, age),
			"could not move %s of age %d from %d to %d in %d tries", s, age, current, target, r.tries)
	}
	return nil
}

func subject(s demography.Sex, age int) string {
	return fmt.Sprintf("%s/%d", s, age)
}

// increase spreads newcomers over (house, primary group) pairs weighted by the
// house occupancy load of that sex and the group's statistical weight.
func (r *Rebalancer) increase(tx *cohort.Tx, s demography.Sex, age, n int) error {
	t := tx.Table()
	houses := t.Houses()
	if len(houses) == 0 {
		return allocate.ErrNoBuckets
	}

	load := make([]float64, len(houses))
	anyLoad := false
	for h, house := range houses {
		if house.Capacity <= 0 {
			continue
		}
		people := 0
		for a := 0; a < t.Ages(); a++ {
			people += tx.Cells(h).SexAge(0, r.primary, s, a)
		}
		load[h] = float64(people) / float64(house.Capacity)
		anyLoad = anyLoad || load[h] > 0
	}
	if !anyLoad {
		for h, house := range houses {
			load[h] = float64(max(house.Capacity, 0))
		}
	}

	group := make([]float64, r.primary)
	anyGroup := false
	for g := 0; g < r.primary; g++ {
		group[g] = r.dist.Primary[g].Probability * r.dist.Primary[g].Distribution.At(s, age)
		anyGroup = anyGroup || group[g] > 0
	}
	if !anyGroup {
		for g := range group {
			group[g] = 1
		}
	}

	weights := make([]float64, len(houses)*r.primary)
	for h := range houses {
		for g := 0; g < r.primary; g++ {
			weights[h*r.primary+g] = load[h] * group[g]
		}
	}
	adds, err := allocate.Allocate(weights, n, r.rng)
	if err != nil {
		return err
	}
	for i, v := range adds {
		if v != 0 {
			tx.Add(i/r.primary, i%r.primary, s, age, v)
		}
	}
	return nil
}

// decrease removes people from occupied primary cells of the given sex and
// age, favouring groups that are statistically rare.
func (r *Rebalancer) decrease(tx *cohort.Tx, s demography.Sex, age, n int) error {
	type cell struct{ h, g, count int }
	var cells []cell
	var weights []float64
	for h := 0; h < tx.Table().Len(); h++ {
		for g := 0; g < r.primary; g++ {
			count := tx.At(h, g, s, age)
			if count <= 0 {
				continue
			}
			cells = append(cells, cell{h, g, count})
			weights = append(weights, float64(count)*(1-r.dist.Primary[g].Probability))
		}
	}
	if len(cells) == 0 {
		return allocate.ErrNoBuckets
	}
	for i := range weights {
		weights[i] = max(weights[i], 0)
	}
	removals, err := allocate.Allocate(weights, n, r.rng)
	if err != nil {
		return err
	}
	for i, v := range removals {
		if v = min(v, cells[i].count); v > 0 {
			tx.Add(cells[i].h, cells[i].g, s, age, -v)
		}
	}
	return nil
}
