package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/engine"
	"github.com/talgya/population-restorator/internal/entropy"
	"github.com/talgya/population-restorator/internal/forecast"
	"github.com/talgya/population-restorator/internal/persistence"
	"github.com/talgya/population-restorator/internal/scenario"
	"github.com/talgya/population-restorator/internal/synth"
	"github.com/talgya/population-restorator/internal/territory"
)

func newSynthCmd(g *globalOptions) *cobra.Command {
	cfg := synth.DefaultConfig()
	var out string

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Generate a synthetic city scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := synth.Generate(cfg, entropy.Stream(g.seed, entropy.StreamSynth))
			if err != nil {
				return err
			}
			if err := doc.Save(out); err != nil {
				return err
			}
			printf(cmd, "%s: %s people, %d territories, %d houses -> %s\n",
				cfg.Name, humanize.Comma(int64(cfg.Population)), len(doc.Territories), len(doc.Houses), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Scenario file to write (required)")
	cmd.Flags().StringVar(&cfg.Name, "name", cfg.Name, "City name")
	cmd.Flags().IntVar(&cfg.Population, "population", cfg.Population, "City population")
	cmd.Flags().IntVar(&cfg.Districts, "districts", cfg.Districts, "Districts under the city")
	cmd.Flags().IntVar(&cfg.Blocks, "blocks", cfg.Blocks, "Blocks per district")
	cmd.Flags().IntVar(&cfg.HousesPerBlock, "houses", cfg.HousesPerBlock, "Mean houses per block")
	cmd.Flags().Float64Var(&cfg.KnownShare, "known-share", cfg.KnownShare, "Share of districts with a known population")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func loadScenario(path string) (*scenario.Document, *territory.Tree, error) {
	doc, err := scenario.Load(path)
	if err != nil {
		return nil, nil, err
	}
	tree, err := doc.Tree()
	if err != nil {
		return nil, nil, err
	}
	return doc, tree, nil
}

func newBalanceCmd(g *globalOptions) *cobra.Command {
	var in, out string

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Fill territory and house populations of a scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, tree, err := loadScenario(in)
			if err != nil {
				return err
			}
			opts := engine.DefaultOptions()
			opts.Seed = g.seed
			opts.MinLivingArea = g.cfg.MinLivingArea
			sim, err := engine.NewSimulation(tree, nil, nil, opts)
			if err != nil {
				return err
			}
			if err := sim.Balance(); err != nil {
				return err
			}
			doc.SetTree(tree)
			if err := doc.Save(out); err != nil {
				return err
			}
			if g.verbose {
				printInfo(cmd, tree.DeepInfo(tree.Root), 0)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "scenario", "s", "", "Scenario file (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Balanced scenario file to write (required)")
	_ = cmd.MarkFlagRequired("scenario")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func printInfo(cmd *cobra.Command, info territory.Info, depth int) {
	printf(cmd, "%*s%s: %s people, %s in houses, %.0f m2\n", depth*2, "", info.Name,
		humanize.Comma(int64(info.Population)), humanize.Comma(int64(info.HousesPeople)), info.LivingArea)
	for _, inner := range info.Inner {
		printInfo(cmd, inner, depth+1)
	}
}

func newDivideCmd(g *globalOptions) *cobra.Command {
	var in string
	var year int
	var balance bool

	cmd := &cobra.Command{
		Use:   "divide",
		Short: "Divide dwelling populations by sex, age and social group",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, tree, err := loadScenario(in)
			if err != nil {
				return err
			}
			o, err := openOutputs(ctx, g)
			if err != nil {
				return err
			}
			defer o.close()

			sim, err := engine.NewSimulation(tree, &doc.Groups, o.report, o.options())
			if err != nil {
				return err
			}
			if err := o.attach(ctx, sim); err != nil {
				return err
			}
			if balance {
				if err := sim.Balance(); err != nil {
					return err
				}
			}
			if err := divide(o, sim, year); err != nil {
				return err
			}
			return o.finish(ctx, sim)
		},
	}
	cmd.Flags().StringVarP(&in, "scenario", "s", "", "Balanced scenario file (required)")
	cmd.Flags().IntVarP(&year, "year", "y", time.Now().Year(), "Year of the divided sample")
	cmd.Flags().BoolVar(&balance, "balance", false, "Balance the scenario before dividing")
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func divide(o *outputs, sim *engine.Simulation, year int) error {
	if err := o.db.SaveGroups(sim.Groups); err != nil {
		return err
	}
	if err := o.db.SaveTree(sim.Tree); err != nil {
		return err
	}
	_, err := sim.Divide(year)
	return err
}

type forecastFlags struct {
	scenario string
	year     int
	years    int
	ratio    float64
	fert     float64
	begin    int
	end      int
}

func (f *forecastFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.years, "years", "n", 0, "Years to forecast (default from scenario, else 10)")
	cmd.Flags().Float64Var(&f.ratio, "boys-to-girls", 0, "Male to female newborn ratio (default 1.05)")
	cmd.Flags().Float64Var(&f.fert, "fertility", 0, "Newborns per fertile woman per year (default 0.1)")
	cmd.Flags().IntVar(&f.begin, "fertility-begin", 0, "First fertile age (default 18)")
	cmd.Flags().IntVar(&f.end, "fertility-end", 0, "Last fertile age (default 38)")
}

func (f *forecastFlags) params(doc *scenario.Document, year int) forecast.Params {
	if f.years > 0 {
		doc.Forecast.Years = f.years
	}
	if f.ratio > 0 {
		doc.Forecast.BoysToGirls = f.ratio
	}
	if f.fert > 0 {
		doc.Forecast.Fertility = f.fert
	}
	if f.begin > 0 {
		doc.Forecast.FertilityBegin = f.begin
	}
	if f.end > 0 {
		doc.Forecast.FertilityEnd = f.end
	}
	doc.Forecast.YearBegin = 0
	return doc.Params(year)
}

func newForecastCmd(g *globalOptions) *cobra.Command {
	var f forecastFlags

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast a divided year stored in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := scenario.Load(f.scenario)
			if err != nil {
				return err
			}
			o, err := openOutputs(ctx, g)
			if err != nil {
				return err
			}
			defer o.close()

			groups, err := o.db.LoadGroups()
			if err != nil {
				return err
			}
			year := f.year
			if year == 0 {
				years, err := o.db.Years()
				if err != nil {
					return err
				}
				if len(years) == 0 {
					return fmt.Errorf("database %s holds no divided year", g.dbPath)
				}
				year = years[len(years)-1]
			}
			table, err := o.db.LoadTable(year)
			if err != nil {
				return err
			}

			sim, err := engine.NewSimulation(nil, groups, o.report, o.options())
			if err != nil {
				return err
			}
			if err := o.attach(ctx, sim); err != nil {
				return err
			}
			sim.Resume(table)
			if err := runForecast(ctx, cmd, g, o, sim, f.params(doc, year)); err != nil {
				return err
			}
			return o.finish(ctx, sim)
		},
	}
	cmd.Flags().StringVarP(&f.scenario, "scenario", "s", "", "Scenario file with survivability coefficients (required)")
	cmd.Flags().IntVarP(&f.year, "year", "y", 0, "Stored year to start from (default latest)")
	f.register(cmd)
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func runForecast(ctx context.Context, cmd *cobra.Command, g *globalOptions, o *outputs, sim *engine.Simulation, p forecast.Params) error {
	for y := p.YearBegin + 1; y <= p.YearBegin+p.Years; y++ {
		exists, err := o.db.HasYear(y)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %d, forecast would overwrite it", persistence.ErrYearExists, y)
		}
	}
	ages, err := sim.Forecast(ctx, p, nil)
	if err != nil {
		return err
	}
	if g.verbose {
		printf(cmd, "%s\n%s", ages.Format(demography.Male), ages.Format(demography.Female))
	}
	return nil
}

func newRunCmd(g *globalOptions) *cobra.Command {
	var f forecastFlags
	var balancedOut string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Balance, divide and forecast a scenario in one go",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, tree, err := loadScenario(f.scenario)
			if err != nil {
				return err
			}
			if err := doc.Validate(); err != nil {
				return err
			}
			o, err := openOutputs(ctx, g)
			if err != nil {
				return err
			}
			defer o.close()

			sim, err := engine.NewSimulation(tree, &doc.Groups, o.report, o.options())
			if err != nil {
				return err
			}
			if err := o.attach(ctx, sim); err != nil {
				return err
			}
			if err := sim.Balance(); err != nil {
				return err
			}
			if balancedOut != "" {
				doc.SetTree(tree)
				if err := doc.Save(balancedOut); err != nil {
					return err
				}
			}
			if err := divide(o, sim, f.year); err != nil {
				return err
			}
			if err := runForecast(ctx, cmd, g, o, sim, f.params(doc, f.year)); err != nil {
				return err
			}
			return o.finish(ctx, sim)
		},
	}
	cmd.Flags().StringVarP(&f.scenario, "scenario", "s", "", "Scenario file (required)")
	cmd.Flags().IntVarP(&f.year, "year", "y", time.Now().Year(), "Year of the divided sample")
	cmd.Flags().StringVar(&balancedOut, "balanced-out", "", "Also write the balanced scenario here")
	f.register(cmd)
	_ = cmd.MarkFlagRequired("scenario")
	return cmd
}

func newAgesCmd(g *globalOptions) *cobra.Command {
	var year int
	var id int64

	cmd := &cobra.Command{
		Use:   "ages",
		Short: "Print men and women by house and age for one territory",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := persistence.Open(g.dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.TerritoryAges(year, territory.ID(id))
			if err != nil {
				return err
			}
			printf(cmd, "house_id,age,men,women\n")
			for _, r := range rows {
				for age := range r.Men {
					if r.Men[age] == 0 && r.Women[age] == 0 {
						continue
					}
					printf(cmd, "%d,%d,%d,%d\n", r.HouseID, age, r.Men[age], r.Women[age])
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Stored year (required)")
	cmd.Flags().Int64VarP(&id, "territory", "t", 0, "Territory id (required)")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("territory")
	return cmd
}
