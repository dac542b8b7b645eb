package demography

import (
	"math"

	"github.com/talgya/population-restorator/internal/diag"
)

// SurvivabilityCoefficients holds, per sex, the probability of surviving from
// age i to age i+1.
type SurvivabilityCoefficients struct {
	Men   []float64 `json:"men"`
	Women []float64 `json:"women"`
}

// Validate checks that both sequences are equally long, finite and non-negative.
func (c SurvivabilityCoefficients) Validate() error {
	if len(c.Men) != len(c.Women) {
		return diag.Integrityf("survivability coefficients have %d men and %d women ages", len(c.Men), len(c.Women))
	}
	for _, seq := range [][]float64{c.Men, c.Women} {
		for age, v := range seq {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return diag.Integrityf("survivability coefficient %v at age %d is invalid", v, age)
			}
		}
	}
	return nil
}

// Len returns the number of age transitions covered.
func (c SurvivabilityCoefficients) Len() int {
	return len(c.Men)
}

// For returns the coefficients of one sex.
func (c SurvivabilityCoefficients) For(s Sex) []float64 {
	if s == Male {
		return c.Men
	}
	return c.Women
}
