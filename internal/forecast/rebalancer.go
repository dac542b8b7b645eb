package forecast

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/dustin/go-humanize"

	"github.com/talgya/population-restorator/internal/cohort"
	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/diag"
)

// DefaultAgeSexTries bounds the correction attempts for one (age, sex) pair.
const DefaultAgeSexTries = 5

// Rebalancer turns one year's table into the next year's, matching the
// forecast curves and the statistical group composition.
type Rebalancer struct {
	dist   *demography.SocialGroupsDistribution
	rng    *rand.Rand
	report *diag.Report
	tries  int

	primary int
	ages    int
	shares  []float64
	addW    [2][][]float64
}

// Option configures a Rebalancer.
type Option func(*Rebalancer)

// WithAgeSexTries overrides DefaultAgeSexTries.
func WithAgeSexTries(n int) Option {
	return func(r *Rebalancer) { r.tries = n }
}

// NewRebalancer validates the group catalogue and precomputes expectations.
func NewRebalancer(dist *demography.SocialGroupsDistribution, rng *rand.Rand, report *diag.Report, opts ...Option) (*Rebalancer, error) {
	if err := dist.Validate(); err != nil {
		return nil, err
	}
	r := &Rebalancer{
		dist:    dist,
		rng:     rng,
		report:  report,
		tries:   DefaultAgeSexTries,
		primary: len(dist.Primary),
		ages:    dist.Ages(),
		shares:  dist.PrimaryShares(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tries < 1 {
		r.tries = 1
	}
	for _, s := range demography.Sexes {
		r.addW[s] = make([][]float64, r.ages)
		for age := 0; age < r.ages; age++ {
			r.addW[s][age] = dist.AdditionalWeights(s, age)
		}
	}
	return r, nil
}

func (r *Rebalancer) check(t *cohort.Table) error {
	if t.Ages() != r.ages || t.PrimaryGroups() != r.primary || len(t.Groups()) != r.primary+len(r.dist.Additional) {
		return diag.Integrityf("year %d table has %d ages and %d/%d groups, distribution has %d ages and %d/%d",
			t.Year, t.Ages(), t.PrimaryGroups(), len(t.Groups()), r.ages, r.primary, r.primary+len(r.dist.Additional))
	}
	return nil
}

// Year ages prev by one year and corrects the result toward the target curves
// of the new year. prev is left untouched.
func (r *Rebalancer) Year(prev *cohort.Table, men, women []int) (*cohort.Table, error) {
	if err := r.check(prev); err != nil {
		return nil, err
	}
	next, err := prev.Advance()
	if err != nil {
		return nil, err
	}
	if r.report != nil {
		r.report.Year = next.Year
	}
	if err := r.CorrectAgeSex(next, men, women); err != nil {
		return nil, err
	}
	if err := newborns(next, men[0], women[0]); err != nil {
		return nil, err
	}
	if err := r.RebalanceGroups(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	m, w, add := next.Totals()
	slog.Info("year forecast",
		"year", next.Year,
		"men", humanize.Comma(int64(m)),
		"women", humanize.Comma(int64(w)),
		"additional", humanize.Comma(int64(add)),
	)
	return next, nil
}

// newborns checks that births were placed. With at least one dwelling the
// age/sex correction always fills a positive age 0 target on its first try.
func newborns(t *cohort.Table, men, women int) error {
	if t.Len() == 0 {
		return nil
	}
	for s, target := range [2]int{men, women} {
		sex := demography.Sex(s)
		if target > 0 && t.PrimaryTotal(sex, 0) == 0 {
			return diag.Invariantf("year %d has no %s of age 0 after placing %d newborns", t.Year, sex, target)
		}
	}
	return nil
}

// Run forecasts every year after start covered by ages, handing each finished
// table to sink in order.
func (r *Rebalancer) Run(ctx context.Context, start *cohort.Table, ages *Ages, sink func(*cohort.Table) error) error {
	if start.Year != ages.YearBegin {
		return diag.Integrityf("forecast begins in %d but the table is for %d", ages.YearBegin, start.Year)
	}
	prev := start
	for i := 1; i < ages.Years(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, err := r.Year(prev, ages.Men[i], ages.Women[i])
		if err != nil {
			return err
		}
		if sink != nil {
			if err := sink(next); err != nil {
				return err
			}
		}
		prev = next
	}
	return nil
}
