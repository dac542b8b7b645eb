// Package divider splits dwelling populations into social group, sex and age
// cells: a multinomial draw over primary cells followed by random additional
// group memberships for already placed people.
package divider

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"

	"github.com/talgya/population-restorator/internal/allocate"
	"github.com/talgya/population-restorator/internal/cohort"
	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/territory"
)

// DefaultPersonTries bounds the search for a person eligible for an additional
// group during one augmentation event.
const DefaultPersonTries = 20

// Divider divides populations with a fixed group catalogue.
type Divider struct {
	dist        *demography.SocialGroupsDistribution
	rng         *rand.Rand
	report      *diag.Report
	personTries int

	groups   []demography.SocialGroup
	ages     int
	primary  int
	shares   []float64
	totalAdd float64
	addW     [2][][]float64
}

// Option configures a Divider.
type Option func(*Divider)

// WithPersonTries overrides DefaultPersonTries.
func WithPersonTries(n int) Option {
	return func(d *Divider) { d.personTries = n }
}

// New validates the catalogue and precomputes sampling vectors.
func New(dist *demography.SocialGroupsDistribution, rng *rand.Rand, report *diag.Report, opts ...Option) (*Divider, error) {
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	d := &Divider{
		dist:        dist,
		rng:         rng,
		report:      report,
		personTries: DefaultPersonTries,
		groups:      dist.Groups(),
		ages:        dist.Ages(),
		primary:     len(dist.Primary),
		shares:      dist.PrimaryShares(),
		totalAdd:    dist.TotalAdditionalProbability(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.personTries < 1 {
		d.personTries = 1
	}
	for _, s := range demography.Sexes {
		d.addW[s] = make([][]float64, d.ages)
		for age := 0; age < d.ages; age++ {
			d.addW[s][age] = dist.AdditionalWeights(s, age)
		}
	}
	return d, nil
}

// Groups returns the group axis of produced cells.
func (d *Divider) Groups() []demography.SocialGroup { return d.groups }

// Divide returns the cells of one dwelling of the given population.
func (d *Divider) Divide(population int) (demography.Cells, error) {
	return d.divide(fmt.Sprintf("population %d", population), population)
}

func (d *Divider) divide(subject string, population int) (demography.Cells, error) {
	cells := demography.NewCells(len(d.groups), d.ages)
	if population < 0 {
		d.report.Add(diag.KindConstraint, subject, "cannot divide negative population %d, leaving it empty", population)
		return cells, nil
	}
	if population == 0 {
		return cells, nil
	}

	counts, err := allocate.Allocate(d.shares, population, d.rng)
	if err != nil {
		return cells, fmt.Errorf("drawing primary cells: %w", err)
	}
	cumulative := make([]int, len(counts))
	running := 0
	for idx, n := range counts {
		cells.AddFlat(idx, n)
		running += n
		cumulative[idx] = running
	}

	if len(d.dist.Additional) == 0 {
		return cells, nil
	}
	events := int(math.Floor(float64(population) * d.totalAdd))
	for e := 0; e < events; e++ {
		if !d.augment(cells, cumulative, population) {
			d.report.Add(diag.KindRetryExhausted, subject,
				"no person eligible for an additional group after %d tries, %d of %d memberships assigned",
				d.personTries, e, events)
			break
		}
	}
	return cells, nil
}

// augment picks random people until one can join an additional group and
// records the membership.
func (d *Divider) augment(cells demography.Cells, cumulative []int, population int) bool {
	for try := 0; try < d.personTries; try++ {
		person := d.rng.IntN(population)
		idx := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > person })
		age := idx % d.ages
		s := demography.Sex((idx / d.ages) % 2)

		weights := d.addW[s][age]
		if floats.Sum(weights) <= 0 {
			continue
		}
		k, err := allocate.Draw(weights, d.rng)
		if err != nil {
			continue
		}
		g := d.primary + k
		if cells.At(g, s, age) >= cells.SexAge(0, d.primary, s, age) {
			continue
		}
		cells.Add(g, s, age, 1)
		return true
	}
	return false
}

// DivideTree divides every dwelling of a balanced tree into a table for the
// given year.
func (d *Divider) DivideTree(tree *territory.Tree, year int) (*cohort.Table, error) {
	dwellings := tree.Dwellings(tree.Root)
	houses := make([]cohort.House, len(dwellings))
	for i, dw := range dwellings {
		houses[i] = cohort.House{ID: dw.ID, TerritoryID: dw.TerritoryID, Capacity: dw.Population}
	}
	table, err := cohort.NewTable(year, d.groups, d.ages, houses)
	if err != nil {
		return nil, err
	}

	populations := make(map[territory.ID]int, len(dwellings))
	total := 0
	err = table.Update(func(tx *cohort.Tx) error {
		for _, dw := range dwellings {
			cells, err := d.divide(fmt.Sprintf("house %d", dw.ID), dw.Population)
			if err != nil {
				return fmt.Errorf("dividing house %d: %w", dw.ID, err)
			}
			h, _ := table.HouseIndex(dw.ID)
			if err := tx.Replace(h, cells); err != nil {
				return err
			}
			populations[dw.ID] = max(dw.Population, 0)
			total += max(dw.Population, 0)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := table.ValidateAgainst(populations); err != nil {
		return nil, err
	}

	men, women, additional := table.Totals()
	slog.Info("population divided",
		"year", year,
		"houses", len(dwellings),
		"people", humanize.Comma(int64(total)),
		"men", humanize.Comma(int64(men)),
		"women", humanize.Comma(int64(women)),
		"additional", humanize.Comma(int64(additional)),
	)
	return table, nil
}
