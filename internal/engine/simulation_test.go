package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/talgya/population-restorator/internal/cohort"
	"github.com/talgya/population-restorator/internal/entropy"
	"github.com/talgya/population-restorator/internal/synth"
)

func smallRun(t *testing.T, seed uint64) *Simulation {
	t.Helper()
	doc, err := synth.Generate(synth.SmallConfig(), entropy.New(seed))
	if err != nil {
		t.Fatal(err)
	}
	tree, err := doc.Tree()
	if err != nil {
		t.Fatal(err)
	}
	opts := DefaultOptions()
	opts.Seed = seed
	sim, err := NewSimulation(tree, &doc.Groups, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	return sim
}

func TestPipeline(t *testing.T) {
	sim := smallRun(t, 11)
	if err := sim.Balance(); err != nil {
		t.Fatal(err)
	}

	var years []int
	sim.OnYear = func(tb *cohort.Table) error {
		years = append(years, tb.Year)
		return tb.Validate()
	}
	table, err := sim.Divide(2023)
	if err != nil {
		t.Fatal(err)
	}
	men, women, _ := table.Totals()
	if want := sim.Tree.TotalHousesPopulation(sim.Tree.Root); men+women != want {
		t.Fatalf("divided %d people, dwellings hold %d", men+women, want)
	}

	doc, _ := synth.Generate(synth.SmallConfig(), entropy.New(11))
	p := doc.Params(1900)
	p.Years = 3
	sunk := 0
	ages, err := sim.Forecast(context.Background(), p, func(*cohort.Table) error {
		sunk++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if ages.YearBegin != 2023 || ages.Years() != 4 {
		t.Fatalf("ages cover %d rows from %d", ages.Years(), ages.YearBegin)
	}
	if want := []int{2023, 2024, 2025, 2026}; len(years) != len(want) || years[3] != 2026 {
		t.Fatalf("years = %v", years)
	}
	if sunk != 3 || sim.Current.Year != 2026 {
		t.Fatalf("sink saw %d years, current %d", sunk, sim.Current.Year)
	}
}

func TestForecastNeedsTable(t *testing.T) {
	sim := smallRun(t, 3)
	doc, _ := synth.Generate(synth.SmallConfig(), entropy.New(3))
	if _, err := sim.Forecast(context.Background(), doc.Params(2023), nil); !errors.Is(err, ErrNoTable) {
		t.Fatalf("expected ErrNoTable, got %v", err)
	}
}

func TestSeedIsRecorded(t *testing.T) {
	doc, err := synth.Generate(synth.SmallConfig(), entropy.New(5))
	if err != nil {
		t.Fatal(err)
	}
	sim, err := NewSimulation(nil, &doc.Groups, nil, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if sim.Seed == 0 {
		t.Fatal("a fresh seed must be drawn")
	}
	if err := sim.Balance(); err == nil {
		t.Fatal("balancing without a tree must fail")
	}
}

func TestReproducibleDivide(t *testing.T) {
	run := func() []cohort.Record {
		sim := smallRun(t, 21)
		if err := sim.Balance(); err != nil {
			t.Fatal(err)
		}
		table, err := sim.Divide(2023)
		if err != nil {
			t.Fatal(err)
		}
		return table.Records()
	}
	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("record counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("record %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
