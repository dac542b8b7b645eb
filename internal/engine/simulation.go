// Package engine runs the restoration pipeline: balance the territory tree,
// divide dwellings into demographic cells, then forecast year by year.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/population-restorator/internal/balancer"
	"github.com/talgya/population-restorator/internal/cohort"
	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/divider"
	"github.com/talgya/population-restorator/internal/entropy"
	"github.com/talgya/population-restorator/internal/forecast"
	"github.com/talgya/population-restorator/internal/territory"
)

// Options tune the stochastic stages.
type Options struct {
	Seed          uint64 // 0 draws a fresh seed, recorded in Simulation.Seed
	MinLivingArea float64
	PersonTries   int
	AgeSexTries   int
}

// DefaultOptions returns the library defaults with a fresh seed.
func DefaultOptions() Options {
	return Options{
		MinLivingArea: balancer.DefaultMinLivingArea,
		PersonTries:   divider.DefaultPersonTries,
		AgeSexTries:   forecast.DefaultAgeSexTries,
	}
}

// Simulation holds the state of one restoration run.
type Simulation struct {
	RunID   uuid.UUID
	Seed    uint64
	Tree    *territory.Tree
	Groups  *demography.SocialGroupsDistribution
	Report  *diag.Report
	Current *cohort.Table // most recent year produced or loaded

	// OnYear is called with every table the run produces, divided year first.
	OnYear func(*cohort.Table) error

	opts Options
}

// ErrNoTable is returned by Forecast before Divide or Resume.
var ErrNoTable = errors.New("no divided table to forecast from")

// ErrNoGroups is returned by Divide and Forecast when the run has no catalogue.
var ErrNoGroups = errors.New("no social groups distribution")

// NewSimulation validates the catalogue and prepares a run. tree may be nil
// when the run only forecasts a stored table, groups when it only balances.
func NewSimulation(tree *territory.Tree, groups *demography.SocialGroupsDistribution, report *diag.Report, opts Options) (*Simulation, error) {
	if groups != nil {
		if err := groups.Validate(); err != nil {
			return nil, err
		}
	}
	if report == nil {
		report = &diag.Report{}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = entropy.NewSeed()
	}
	s := &Simulation{
		RunID:  uuid.New(),
		Seed:   seed,
		Tree:   tree,
		Groups: groups,
		Report: report,
		opts:   opts,
	}
	slog.Info("simulation ready", "run", s.RunID, "seed", seed)
	return s, nil
}

// Balance fills territory and dwelling populations in place.
func (s *Simulation) Balance() error {
	if s.Tree == nil {
		return diag.Integrityf("no territory tree to balance")
	}
	var opts []balancer.Option
	if s.opts.MinLivingArea > 0 {
		opts = append(opts, balancer.WithMinLivingArea(s.opts.MinLivingArea))
	}
	b := balancer.New(entropy.Stream(s.Seed, entropy.StreamBalance), s.Report, opts...)
	if err := b.Balance(s.Tree); err != nil {
		return err
	}
	slog.Info("city balanced",
		"city", s.Tree.RootNode().Name,
		"target", humanize.Comma(int64(s.Tree.RootNode().Population)),
		"houses", humanize.Comma(int64(s.Tree.TotalHousesPopulation(s.Tree.Root))),
	)
	return nil
}

// Divide splits every balanced dwelling into cells for year and makes the
// result the current table.
func (s *Simulation) Divide(year int) (*cohort.Table, error) {
	if s.Tree == nil {
		return nil, diag.Integrityf("no territory tree to divide")
	}
	if s.Groups == nil {
		return nil, ErrNoGroups
	}
	var opts []divider.Option
	if s.opts.PersonTries > 0 {
		opts = append(opts, divider.WithPersonTries(s.opts.PersonTries))
	}
	s.Report.Year = year
	d, err := divider.New(s.Groups, entropy.Stream(s.Seed, entropy.StreamDivide), s.Report, opts...)
	if err != nil {
		return nil, err
	}
	table, err := d.DivideTree(s.Tree, year)
	if err != nil {
		return nil, err
	}
	s.Current = table
	if err := s.emit(table); err != nil {
		return nil, err
	}
	return table, nil
}

// Resume makes a stored table the starting point of Forecast.
func (s *Simulation) Resume(table *cohort.Table) {
	s.Current = table
}

// Forecast projects the current table's curves for p.Years years and
// rebalances each year toward them. p.YearBegin is taken from the current
// table. Produced years go to OnYear and then to sink.
func (s *Simulation) Forecast(ctx context.Context, p forecast.Params, sink func(*cohort.Table) error) (*forecast.Ages, error) {
	if s.Current == nil {
		return nil, ErrNoTable
	}
	if s.Groups == nil {
		return nil, ErrNoGroups
	}
	p.YearBegin = s.Current.Year
	men, women := s.Current.AgeSexCurves()
	ages, err := forecast.ForecastAges(men, women, p)
	if err != nil {
		return nil, err
	}

	var opts []forecast.Option
	if s.opts.AgeSexTries > 0 {
		opts = append(opts, forecast.WithAgeSexTries(s.opts.AgeSexTries))
	}
	r, err := forecast.NewRebalancer(s.Groups, entropy.Stream(s.Seed, entropy.StreamForecast), s.Report, opts...)
	if err != nil {
		return nil, err
	}
	err = r.Run(ctx, s.Current, ages, func(t *cohort.Table) error {
		s.Current = t
		if err := s.emit(t); err != nil {
			return err
		}
		if sink != nil {
			return sink(t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("forecast finished",
		"run", s.RunID,
		"from", ages.YearBegin,
		"to", s.Current.Year,
		"issues", len(s.Report.Issues),
	)
	return ages, nil
}

func (s *Simulation) emit(t *cohort.Table) error {
	if s.OnYear == nil {
		return nil
	}
	return s.OnYear(t)
}
