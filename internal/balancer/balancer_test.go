package balancer

import (
	"math"
	"testing"

	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/entropy"
	"github.com/talgya/population-restorator/internal/territory"
)

func intp(v int) *int { return &v }

func idp(v territory.ID) *territory.ID { return &v }

func areap(v float64) *float64 { return &v }

func TestHousesTwoDwellings(t *testing.T) {
	tree, err := territory.Build(
		territory.Record{ID: 1, Name: "city", Population: intp(100)},
		nil,
		[]territory.HouseRecord{
			{ID: 1, TerritoryID: 1, LivingArea: areap(30)},
			{ID: 2, TerritoryID: 1, LivingArea: areap(70)},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	b := New(entropy.New(42), &diag.Report{})
	if err := b.Balance(tree); err != nil {
		t.Fatal(err)
	}
	ds := tree.Dwellings(1)
	if ds[0].Population+ds[1].Population != 100 {
		t.Fatalf("populations %d + %d != 100", ds[0].Population, ds[1].Population)
	}
	if ds[0].Population < 10 || ds[0].Population > 50 {
		t.Fatalf("first dwelling got %d, expected roughly 30", ds[0].Population)
	}
}

func TestHousesProportionalAtScale(t *testing.T) {
	tree, err := territory.Build(
		territory.Record{ID: 1, Name: "city", Population: intp(100000)},
		nil,
		[]territory.HouseRecord{
			{ID: 1, TerritoryID: 1, LivingArea: areap(30)},
			{ID: 2, TerritoryID: 1, LivingArea: areap(70)},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := New(entropy.New(3), nil).Houses(tree); err != nil {
		t.Fatal(err)
	}
	share := float64(tree.Dwellings(1)[0].Population) / 100000
	if math.Abs(share-0.3) > 0.01 {
		t.Fatalf("share %.3f, want about 0.3", share)
	}
}

func TestHousesKeepExistingAndShrink(t *testing.T) {
	tree, err := territory.Build(
		territory.Record{ID: 1, Name: "city", Population: intp(10)},
		nil,
		[]territory.HouseRecord{
			{ID: 1, TerritoryID: 1, LivingArea: areap(10), Population: intp(8)},
			{ID: 2, TerritoryID: 1, LivingArea: areap(10), Population: intp(8)},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := New(entropy.New(5), nil).Houses(tree); err != nil {
		t.Fatal(err)
	}
	if got := tree.TotalHousesPopulation(1); got != 10 {
		t.Fatalf("total = %d, want 10", got)
	}
}

func TestHousesBelowLivingAreaThreshold(t *testing.T) {
	tree, err := territory.Build(
		territory.Record{ID: 1, Name: "city", Population: intp(50)},
		nil,
		[]territory.HouseRecord{
			{ID: 1, TerritoryID: 1, LivingArea: areap(1), Population: intp(3)},
			{ID: 2, TerritoryID: 1, LivingArea: areap(2)},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	report := &diag.Report{}
	if err := New(entropy.New(1), report).Houses(tree); err != nil {
		t.Fatal(err)
	}
	for _, d := range tree.Dwellings(1) {
		if d.Population != 0 {
			t.Fatalf("house %d population = %d, want 0", d.ID, d.Population)
		}
	}
	if report.Count(diag.KindUnattainable) != 1 {
		t.Fatalf("expected one unattainable issue, got %+v", report.Issues)
	}
}

func TestTerritoriesTopDown(t *testing.T) {
	terrs := []territory.Record{
		{ID: 10, ParentID: idp(1), Name: "a", Population: intp(100)},
		{ID: 11, ParentID: idp(1), Name: "b"},
		{ID: 20, ParentID: idp(10), Name: "a1", Population: intp(30)},
		{ID: 21, ParentID: idp(10), Name: "a2", Population: intp(30)},
	}
	houses := []territory.HouseRecord{
		{ID: 1, TerritoryID: 20, LivingArea: areap(100)},
		{ID: 2, TerritoryID: 21, LivingArea: areap(300)},
		{ID: 3, TerritoryID: 11, LivingArea: areap(400)},
	}
	tree, err := territory.Build(territory.Record{ID: 1, Name: "city", Population: intp(1000)}, terrs, houses)
	if err != nil {
		t.Fatal(err)
	}
	before := map[territory.ID]int{}
	tree.Walk(func(n *territory.Territory) { before[n.ID] = n.Population })

	report := &diag.Report{}
	b := New(entropy.New(8), report)
	if err := b.Balance(tree); err != nil {
		t.Fatal(err)
	}

	tree.Walk(func(n *territory.Territory) {
		if n.IsLeaf() {
			if n.Population < before[n.ID] {
				t.Fatalf("leaf %q decreased from %d to %d", n.Name, before[n.ID], n.Population)
			}
			if got := tree.TotalHousesPopulation(n.ID); got != n.Population {
				t.Fatalf("leaf %q houses hold %d, target %d", n.Name, got, n.Population)
			}
			return
		}
		sum := 0
		for _, c := range tree.Children(n.ID) {
			sum += c.Population
		}
		if sum != n.Population {
			t.Fatalf("territory %q population %d != children sum %d", n.Name, n.Population, sum)
		}
	})
	if tree.RootNode().Population != 1000 {
		t.Fatalf("root population = %d, want 1000", tree.RootNode().Population)
	}
	if report.Count(diag.KindConstraint) != 0 {
		t.Fatalf("unexpected issues: %+v", report.Issues)
	}
}

func TestTerritoriesParentSmallerThanChildren(t *testing.T) {
	terrs := []territory.Record{
		{ID: 10, ParentID: idp(1), Name: "a", Population: intp(80)},
		{ID: 11, ParentID: idp(1), Name: "b", Population: intp(70)},
	}
	houses := []territory.HouseRecord{
		{ID: 1, TerritoryID: 10, LivingArea: areap(10)},
		{ID: 2, TerritoryID: 11, LivingArea: areap(10)},
	}
	tree, err := territory.Build(territory.Record{ID: 1, Name: "city", Population: intp(100)}, terrs, houses)
	if err != nil {
		t.Fatal(err)
	}
	report := &diag.Report{}
	if err := New(entropy.New(2), report).Territories(tree); err != nil {
		t.Fatal(err)
	}
	if tree.Get(10).Population != 80 || tree.Get(11).Population != 70 {
		t.Fatal("children must never be shrunk by propagation")
	}
	if tree.RootNode().Population != 150 {
		t.Fatalf("root must end as children sum, got %d", tree.RootNode().Population)
	}
	if report.Count(diag.KindConstraint) != 1 {
		t.Fatalf("expected the surplus to be reported, got %+v", report.Issues)
	}
}

func TestTerritoriesZeroAreaFallsBackToUniform(t *testing.T) {
	terrs := []territory.Record{
		{ID: 10, ParentID: idp(1), Name: "a"},
		{ID: 11, ParentID: idp(1), Name: "b"},
	}
	tree, err := territory.Build(territory.Record{ID: 1, Name: "city", Population: intp(1000)}, terrs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := New(entropy.New(4), nil).Territories(tree); err != nil {
		t.Fatal(err)
	}
	a, b := tree.Get(10).Population, tree.Get(11).Population
	if a+b != 1000 || a < 400 || b < 400 {
		t.Fatalf("uniform split expected, got %d / %d", a, b)
	}
}
