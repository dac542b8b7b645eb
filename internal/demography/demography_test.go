package demography

import (
	"errors"
	"testing"

	"github.com/talgya/population-restorator/internal/diag"
)

func twoGroups() *SocialGroupsDistribution {
	return &SocialGroupsDistribution{
		Primary: []SocialGroup{
			{Name: "workers", Probability: 0.75, Distribution: SexAgeDistribution{
				Men: []float64{0.25, 0.25}, Women: []float64{0.25, 0.25}}},
			{Name: "students", Probability: 0.25, Distribution: SexAgeDistribution{
				Men: []float64{0.5, 0}, Women: []float64{0.5, 0}}},
		},
		Additional: []SocialGroup{
			{Name: "disabled", Probability: 0.1, Distribution: SexAgeDistribution{
				Men: []float64{0, 1}, Women: []float64{0, 1}}},
		},
	}
}

func TestValidateAssignsIDs(t *testing.T) {
	d := twoGroups()
	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
	groups := d.Groups()
	if len(groups) != 3 {
		t.Fatalf("got %d groups", len(groups))
	}
	for i, g := range groups {
		if g.ID != int64(i+1) {
			t.Fatalf("group %q id = %d, want %d", g.Name, g.ID, i+1)
		}
	}
	if !groups[0].Primary || groups[2].Primary {
		t.Fatal("primary flags not set")
	}
}

func TestValidateRejectsRaggedCurves(t *testing.T) {
	d := twoGroups()
	d.Additional[0].Distribution.Women = []float64{1}
	if err := d.Validate(); !errors.Is(err, diag.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
	d = twoGroups()
	d.Primary[1].Name = "workers"
	if err := d.Validate(); !errors.Is(err, diag.ErrIntegrity) {
		t.Fatalf("expected duplicate name error, got %v", err)
	}
	if err := (&SocialGroupsDistribution{}).Validate(); !errors.Is(err, diag.ErrIntegrity) {
		t.Fatalf("expected error for empty catalogue, got %v", err)
	}
}

func TestPrimaryShares(t *testing.T) {
	d := twoGroups()
	shares := d.PrimaryShares()
	c := NewCells(3, 2)
	if got := shares[c.Index(0, Male, 1)]; got != 0.1875 {
		t.Fatalf("workers/men/1 share = %v, want 0.1875", got)
	}
	if got := shares[c.Index(1, Female, 0)]; got != 0.125 {
		t.Fatalf("students/women/0 share = %v, want 0.125", got)
	}
	if got := d.AdditionalWeights(Male, 0)[0]; got != 0 {
		t.Fatalf("children are not eligible, weight = %v", got)
	}
	if got := d.TotalAdditionalProbability(); got != 0.1 {
		t.Fatalf("TotalAdditionalProbability = %v", got)
	}
}

func TestCellsShift(t *testing.T) {
	c := NewCells(2, 3)
	c.Set(0, Male, 0, 5)
	c.Set(0, Male, 1, 6)
	c.Set(0, Male, 2, 7)
	c.Set(1, Female, 0, 1)
	c.Shift()
	if c.At(0, Male, 0) != 0 || c.At(0, Male, 1) != 5 || c.At(0, Male, 2) != 6 {
		t.Fatalf("shift wrong: %d %d %d", c.At(0, Male, 0), c.At(0, Male, 1), c.At(0, Male, 2))
	}
	if c.At(1, Female, 1) != 1 || c.At(1, Male, 0) != 0 {
		t.Fatal("shift leaked across sexes")
	}
	if c.Sum(0, 1) != 11 || c.Sum(0, 2) != 12 {
		t.Fatalf("sums after shift: %d %d", c.Sum(0, 1), c.Sum(0, 2))
	}
}

func TestCellsCloneAndNegative(t *testing.T) {
	c := NewCells(1, 2)
	d := c.Clone()
	d.Add(0, Female, 1, -1)
	if _, _, _, ok := c.Negative(); ok {
		t.Fatal("clone must not share storage")
	}
	g, s, age, ok := d.Negative()
	if !ok || g != 0 || s != Female || age != 1 {
		t.Fatalf("Negative = %d %v %d %v", g, s, age, ok)
	}
}

func TestSurvivabilityValidate(t *testing.T) {
	ok := SurvivabilityCoefficients{Men: []float64{1, 0.9}, Women: []float64{1, 0.95}}
	if err := ok.Validate(); err != nil {
		t.Fatal(err)
	}
	bad := SurvivabilityCoefficients{Men: []float64{1}, Women: []float64{1, 1}}
	if err := bad.Validate(); !errors.Is(err, diag.ErrIntegrity) {
		t.Fatalf("expected integrity error, got %v", err)
	}
}
