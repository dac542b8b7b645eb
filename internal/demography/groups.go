// Package demography models social groups, sex-age probability curves,
// survivability coefficients and the {group × sex × age} cell tensor.
package demography

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/talgya/population-restorator/internal/diag"
)

// Sex indexes the sex axis of every curve and tensor.
type Sex int

const (
	Male Sex = iota
	Female
)

// Sexes lists both sexes in tensor order.
var Sexes = [2]Sex{Male, Female}

func (s Sex) String() string {
	if s == Male {
		return "men"
	}
	return "women"
}

// SexAgeDistribution holds one probability per age for each sex.
type SexAgeDistribution struct {
	Men   []float64 `json:"men"`
	Women []float64 `json:"women"`
}

// At returns the probability for a sex and age, 0 outside the curve.
func (d SexAgeDistribution) At(s Sex, age int) float64 {
	curve := d.Men
	if s == Female {
		curve = d.Women
	}
	if age < 0 || age >= len(curve) {
		return 0
	}
	return curve[age]
}

// SocialGroup is one demographic category. Primary groups are mutually
// exclusive and cover everyone; additional groups overlay primary cells.
type SocialGroup struct {
	ID           int64              `json:"id"`
	Name         string             `json:"name"`
	Probability  float64            `json:"probability"`
	Distribution SexAgeDistribution `json:"distribution"`
	Primary      bool               `json:"-"`
}

// SocialGroupsDistribution is the full group catalogue.
type SocialGroupsDistribution struct {
	Primary    []SocialGroup `json:"primary"`
	Additional []SocialGroup `json:"additional,omitempty"`
}

// Validate checks the catalogue and assigns sequential ids (primary first) to
// groups that have none.
func (d *SocialGroupsDistribution) Validate() error {
	if len(d.Primary) == 0 {
		return diag.Integrityf("social groups distribution has no primary groups")
	}
	ages := len(d.Primary[0].Distribution.Men)
	if ages == 0 {
		return diag.Integrityf("social group %q has an empty age curve", d.Primary[0].Name)
	}

	names := make(map[string]bool)
	ids := make(map[int64]bool)
	next := int64(1)
	for _, groups := range [][]SocialGroup{d.Primary, d.Additional} {
		for i := range groups {
			g := &groups[i]
			if g.Name == "" || names[g.Name] {
				return diag.Integrityf("social group name %q is empty or duplicated", g.Name)
			}
			names[g.Name] = true
			if len(g.Distribution.Men) != ages || len(g.Distribution.Women) != ages {
				return diag.Integrityf("social group %q curves have %d/%d ages, want %d",
					g.Name, len(g.Distribution.Men), len(g.Distribution.Women), ages)
			}
			if !validProbability(g.Probability) {
				return diag.Integrityf("social group %q has invalid probability %v", g.Name, g.Probability)
			}
			for _, curve := range [][]float64{g.Distribution.Men, g.Distribution.Women} {
				for age, p := range curve {
					if !validProbability(p) {
						return diag.Integrityf("social group %q has invalid probability %v at age %d", g.Name, p, age)
					}
				}
			}
			if g.ID == 0 {
				for ids[next] {
					next++
				}
				g.ID = next
			}
			if ids[g.ID] {
				return diag.Integrityf("social group id %d is duplicated", g.ID)
			}
			ids[g.ID] = true
		}
	}
	for i := range d.Primary {
		d.Primary[i].Primary = true
	}
	return nil
}

func validProbability(p float64) bool {
	return p >= 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// Ages returns the length of the age axis.
func (d *SocialGroupsDistribution) Ages() int {
	if len(d.Primary) == 0 {
		return 0
	}
	return len(d.Primary[0].Distribution.Men)
}

// Groups returns primary groups followed by additional ones, the order of the
// group axis of every Cells tensor.
func (d *SocialGroupsDistribution) Groups() []SocialGroup {
	out := make([]SocialGroup, 0, len(d.Primary)+len(d.Additional))
	for _, g := range d.Primary {
		g.Primary = true
		out = append(out, g)
	}
	for _, g := range d.Additional {
		g.Primary = false
		out = append(out, g)
	}
	return out
}

// PrimaryVector flattens group probability × sex-age probability over all
// primary cells, indexed like Cells.Index. It is not normalised.
func (d *SocialGroupsDistribution) PrimaryVector() []float64 {
	ages := d.Ages()
	out := make([]float64, len(d.Primary)*2*ages)
	for g, group := range d.Primary {
		for _, s := range Sexes {
			for a := 0; a < ages; a++ {
				out[(g*2+int(s))*ages+a] = group.Probability * group.Distribution.At(s, a)
			}
		}
	}
	return out
}

// PrimaryShares returns PrimaryVector normalised to sum to one, the expected
// share of a dwelling's population in every primary cell.
func (d *SocialGroupsDistribution) PrimaryShares() []float64 {
	v := d.PrimaryVector()
	if total := floats.Sum(v); total > 0 {
		floats.Scale(1/total, v)
	}
	return v
}

// AdditionalWeights returns, for a person of the given sex and age, the
// unnormalised chance of joining each additional group.
func (d *SocialGroupsDistribution) AdditionalWeights(s Sex, age int) []float64 {
	out := make([]float64, len(d.Additional))
	for k, group := range d.Additional {
		out[k] = group.Probability * group.Distribution.At(s, age)
	}
	return out
}

// TotalAdditionalProbability is the expected number of additional memberships
// per person.
func (d *SocialGroupsDistribution) TotalAdditionalProbability() float64 {
	total := 0.0
	for _, g := range d.Additional {
		total += g.Probability
	}
	return total
}
