package territory

import (
	"errors"
	"testing"

	"github.com/talgya/population-restorator/internal/diag"
)

func intp(v int) *int { return &v }

func idp(v ID) *ID { return &v }

func areap(v float64) *float64 { return &v }

func sampleCity() (Record, []Record, []HouseRecord) {
	city := Record{ID: 1, Name: "city", Population: intp(1000)}
	terrs := []Record{
		{ID: 10, ParentID: idp(1), Name: "north", Population: intp(400)},
		{ID: 11, ParentID: idp(1), Name: "south"},
		{ID: 20, ParentID: idp(10), Name: "north-a", Population: intp(150)},
		{ID: 21, ParentID: idp(10), Name: "north-b", Population: intp(200)},
	}
	houses := []HouseRecord{
		{ID: 100, TerritoryID: 20, LivingArea: areap(30)},
		{ID: 101, TerritoryID: 20, LivingArea: areap(70)},
		{ID: 102, TerritoryID: 21, LivingArea: areap(50), Population: intp(12)},
		{ID: 103, TerritoryID: 11, LivingArea: nil},
	}
	return city, terrs, houses
}

func TestBuild(t *testing.T) {
	tr, err := Build(sampleCity())
	if err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 5 {
		t.Fatalf("Len = %d, want 5", tr.Len())
	}
	if got := len(tr.Children(1)); got != 2 {
		t.Fatalf("city has %d children, want 2", got)
	}
	if tr.Get(11).Population != 0 {
		t.Fatal("unset population must default to 0")
	}
	if got := tr.TotalLivingArea(1); got != 150 {
		t.Fatalf("TotalLivingArea = %v, want 150", got)
	}
	if got := tr.TotalHousesPopulation(10); got != 12 {
		t.Fatalf("TotalHousesPopulation = %d, want 12", got)
	}
	if got := tr.TotalTerritoriesPopulation(10); got != 350 {
		t.Fatalf("TotalTerritoriesPopulation = %d, want 350", got)
	}

	var order []ID
	tr.Walk(func(t *Territory) { order = append(order, t.ID) })
	want := []ID{1, 10, 20, 21, 11}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("walk order %v, want %v", order, want)
		}
	}
	if leaves := tr.Leaves(); len(leaves) != 3 {
		t.Fatalf("got %d leaves, want 3", len(leaves))
	}
	if ds := tr.Dwellings(1); len(ds) != 4 || ds[0].ID != 100 || ds[3].ID != 103 {
		t.Fatalf("unexpected dwelling order")
	}
}

func TestBuildOrphansAttachToCity(t *testing.T) {
	city := Record{ID: 0, Name: "city", Population: intp(10)}
	tr, err := Build(city, []Record{{ID: 5, Name: "solo"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if *tr.Get(5).ParentID != 0 {
		t.Fatal("territory without parent must hang under the city")
	}
}

func TestBuildIntegrityErrors(t *testing.T) {
	city, terrs, houses := sampleCity()
	cases := map[string]func() (Record, []Record, []HouseRecord){
		"duplicate territory": func() (Record, []Record, []HouseRecord) {
			return city, append(terrs, Record{ID: 20, ParentID: idp(1)}), houses
		},
		"unknown parent": func() (Record, []Record, []HouseRecord) {
			return city, append(terrs, Record{ID: 30, ParentID: idp(99)}), houses
		},
		"cycle": func() (Record, []Record, []HouseRecord) {
			return city, append(terrs, Record{ID: 40, ParentID: idp(41)}, Record{ID: 41, ParentID: idp(40)}), houses
		},
		"house on non-leaf": func() (Record, []Record, []HouseRecord) {
			return city, terrs, append(houses, HouseRecord{ID: 200, TerritoryID: 10, LivingArea: areap(1)})
		},
		"negative living area": func() (Record, []Record, []HouseRecord) {
			return city, terrs, append(houses, HouseRecord{ID: 201, TerritoryID: 20, LivingArea: areap(-1)})
		},
		"unknown territory": func() (Record, []Record, []HouseRecord) {
			return city, terrs, append(houses, HouseRecord{ID: 202, TerritoryID: 77})
		},
		"missing city population": func() (Record, []Record, []HouseRecord) {
			return Record{ID: 1, Name: "city"}, terrs, houses
		},
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Build(input())
			if !errors.Is(err, diag.ErrIntegrity) {
				t.Fatalf("expected integrity error, got %v", err)
			}
		})
	}
}

func TestDeepInfoAndRecords(t *testing.T) {
	tr, err := Build(sampleCity())
	if err != nil {
		t.Fatal(err)
	}
	info := tr.DeepInfo(1)
	if info.HousesCount != 4 || len(info.Inner) != 2 || info.Inner[0].Name != "north" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if recs := tr.Records(); len(recs) != 4 {
		t.Fatalf("Records returned %d rows, want 4", len(recs))
	}
	hr := tr.HouseRecords()
	if len(hr) != 4 || *hr[3].LivingArea != 0 {
		t.Fatalf("unexpected house records: %+v", hr)
	}
}
