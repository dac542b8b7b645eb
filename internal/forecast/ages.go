// Package forecast projects sex-age population curves forward and rebalances
// each year's divided table toward them.
package forecast

import (
	"fmt"
	"math"
	"strings"

	"github.com/talgya/population-restorator/internal/cohort"
	"github.com/talgya/population-restorator/internal/demography"
	"github.com/talgya/population-restorator/internal/diag"
)

// Params drives the cohort recurrence.
type Params struct {
	YearBegin      int
	Years          int
	BoysToGirls    float64
	Fertility      float64
	FertilityBegin int // first fertile age, inclusive
	FertilityEnd   int // last fertile age, inclusive
	Survivability  demography.SurvivabilityCoefficients
}

// DefaultParams returns the parameters used when none are given.
func DefaultParams(yearBegin int, survivability demography.SurvivabilityCoefficients) Params {
	return Params{
		YearBegin:      yearBegin,
		Years:          10,
		BoysToGirls:    1.05,
		Fertility:      0.1,
		FertilityBegin: 18,
		FertilityEnd:   38,
		Survivability:  survivability,
	}
}

// Validate checks the parameters against the number of ages observed.
func (p Params) Validate(ages int) error {
	if err := p.Survivability.Validate(); err != nil {
		return err
	}
	if p.Survivability.Len() != ages-1 {
		return diag.Integrityf("survivability coefficients cover %d ages, but max age is %d", p.Survivability.Len(), ages-1)
	}
	if p.Years < 0 {
		return diag.Integrityf("forecast horizon %d is negative", p.Years)
	}
	if !(p.BoysToGirls > 0) || math.IsInf(p.BoysToGirls, 0) {
		return diag.Integrityf("boys to girls ratio %v must be positive", p.BoysToGirls)
	}
	if p.Fertility < 0 || math.IsNaN(p.Fertility) || math.IsInf(p.Fertility, 0) {
		return diag.Integrityf("fertility coefficient %v is invalid", p.Fertility)
	}
	if p.FertilityBegin < 0 || p.FertilityBegin > p.FertilityEnd {
		return diag.Integrityf("fertility window [%d, %d] is invalid", p.FertilityBegin, p.FertilityEnd)
	}
	return nil
}

// Ages holds one row per year (YearBegin first) and one column per age.
type Ages struct {
	YearBegin int
	Men       [][]int
	Women     [][]int
}

// Years returns the number of rows including the starting year.
func (a *Ages) Years() int { return len(a.Men) }

// Row returns the men and women curves of a calendar year.
func (a *Ages) Row(year int) (men, women []int, ok bool) {
	i := year - a.YearBegin
	if i < 0 || i >= len(a.Men) {
		return nil, nil, false
	}
	return a.Men[i], a.Women[i], true
}

// ForecastAges applies the aging recurrence to the starting curves for
// p.Years years. Ages past the fertility window end are clipped to the curve.
func ForecastAges(men, women []int, p Params) (*Ages, error) {
	if len(men) != len(women) {
		return nil, diag.Integrityf("men curve has %d ages, women curve %d", len(men), len(women))
	}
	if len(men) == 0 {
		return nil, diag.Integrityf("empty age curves")
	}
	if err := p.Validate(len(men)); err != nil {
		return nil, err
	}

	out := &Ages{YearBegin: p.YearBegin}
	curMen, curWomen := append([]int(nil), men...), append([]int(nil), women...)
	out.Men = append(out.Men, curMen)
	out.Women = append(out.Women, curWomen)

	end := min(p.FertilityEnd, len(women)-1)
	for y := 0; y < p.Years; y++ {
		fertile := 0
		for age := p.FertilityBegin; age <= end; age++ {
			fertile += curWomen[age]
		}
		births := float64(fertile) * p.Fertility / 2

		nextMen, nextWomen := make([]int, len(curMen)), make([]int, len(curWomen))
		for age := 1; age < len(curMen); age++ {
			nextMen[age] = int(math.RoundToEven(float64(curMen[age-1]) * p.Survivability.Men[age-1]))
			nextWomen[age] = int(math.RoundToEven(float64(curWomen[age-1]) * p.Survivability.Women[age-1]))
		}
		nextMen[0] = int(births * p.BoysToGirls)
		nextWomen[0] = int(births / p.BoysToGirls)

		out.Men = append(out.Men, nextMen)
		out.Women = append(out.Women, nextWomen)
		curMen, curWomen = nextMen, nextWomen
	}
	return out, nil
}

// Format renders one sex as a year × age table with a per-year sum column.
func (a *Ages) Format(s demography.Sex) string {
	rows := a.Men
	if s == demography.Female {
		rows = a.Women
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n%-6s", s, "year")
	if len(rows) > 0 {
		for age := range rows[0] {
			fmt.Fprintf(&b, " %6d", age)
		}
	}
	fmt.Fprintf(&b, " %8s\n", "sum")
	for i, row := range rows {
		fmt.Fprintf(&b, "%-6d", a.YearBegin+i)
		for _, v := range row {
			fmt.Fprintf(&b, " %6d", v)
		}
		fmt.Fprintf(&b, " %8d\n", cohort.Sum(row))
	}
	return b.String()
}
