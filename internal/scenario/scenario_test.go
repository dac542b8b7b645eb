package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/territory"
)

func intp(v int) *int { return &v }

func areap(v float64) *float64 { return &v }

func sample() *Document {
	return &Document{
		City: territory.Record{ID: 1, Name: "city", Population: intp(100)},
		Territories: []territory.Record{
			{ID: 2, Name: "north"},
			{ID: 3, Name: "south", Population: intp(40)},
		},
		Houses: []territory.HouseRecord{
			{ID: 10, TerritoryID: 2, LivingArea: areap(120)},
			{ID: 11, TerritoryID: 3, LivingArea: areap(80)},
		},
		Groups: demography.SocialGroupsDistribution{
			Primary: []demography.SocialGroup{{
				Name: "everyone", Probability: 1,
				Distribution: demography.SexAgeDistribution{Men: []float64{1, 1, 1}, Women: []float64{1, 1, 1}},
			}},
		},
		Survivability: demography.SurvivabilityCoefficients{Men: []float64{0.9, 0.8}, Women: []float64{0.95, 0.9}},
		Forecast:      Forecast{Years: 3, Fertility: 0.2},
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "city.json")
	if err := sample().Save(path); err != nil {
		t.Fatal(err)
	}
	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.Validate(); err != nil {
		t.Fatal(err)
	}
	tree, err := doc.Tree()
	if err != nil {
		t.Fatal(err)
	}
	if tree.Len() != 3 || len(tree.Dwellings(tree.Root)) != 2 {
		t.Fatalf("unexpected tree %s", tree)
	}
	if doc.Territories[0].Population != nil {
		t.Fatal("missing population must stay unset")
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"city": 5}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, diag.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestParams(t *testing.T) {
	doc := sample()
	p := doc.Params(2023)
	if p.YearBegin != 2023 || p.Years != 3 || p.Fertility != 0.2 || p.BoysToGirls != 1.05 || p.FertilityEnd != 38 {
		t.Fatalf("unexpected params %+v", p)
	}
	doc.Forecast.YearBegin = 2030
	if got := doc.Params(2023).YearBegin; got != 2030 {
		t.Fatalf("year begin = %d", got)
	}
}

func TestValidateDimensionMismatch(t *testing.T) {
	doc := sample()
	doc.Survivability = demography.SurvivabilityCoefficients{Men: []float64{1}, Women: []float64{1}}
	if err := doc.Validate(); !errors.Is(err, diag.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}

func TestSetTree(t *testing.T) {
	doc := sample()
	tree, err := doc.Tree()
	if err != nil {
		t.Fatal(err)
	}
	tree.Get(2).Population = 60
	doc.SetTree(tree)
	if *doc.City.Population != 100 || len(doc.Territories) != 2 || len(doc.Houses) != 2 {
		t.Fatalf("unexpected document %+v", doc)
	}
	for _, r := range doc.Territories {
		if r.ID == 2 && *r.Population != 60 {
			t.Fatalf("north population = %d", *r.Population)
		}
	}
}
