package synth

import (
	"math"

	"github.com/talgya/population-restorator/internal/demography"
)

// band returns a curve of length ages that rises linearly over ramp years
// after from, stays flat, and falls to zero over ramp years before to.
func band(ages, from, to, ramp int) []float64 {
	out := make([]float64, ages)
	for age := max(from, 0); age <= min(to, ages-1); age++ {
		w := 1.0
		if ramp > 0 {
			w = min(w, float64(age-from+1)/float64(ramp))
			w = min(w, float64(to-age+1)/float64(ramp))
		}
		out[age] = w
	}
	return out
}

// ageing scales a curve down with age so that older cohorts are thinner.
func ageing(curve []float64, halfLife float64) []float64 {
	out := make([]float64, len(curve))
	for age, v := range curve {
		out[age] = v * math.Exp2(-float64(age)/halfLife)
	}
	return out
}

// Groups returns a generic catalogue: four primary life stages and two
// additional groups.
func Groups(ages int) demography.SocialGroupsDistribution {
	group := func(name string, p float64, men, women []float64) demography.SocialGroup {
		return demography.SocialGroup{
			Name: name, Probability: p,
			Distribution: demography.SexAgeDistribution{Men: men, Women: women},
		}
	}
	children := band(ages, 0, 17, 0)
	students := band(ages, 16, 24, 2)
	workers := band(ages, 18, 65, 5)
	retiredMen := ageing(band(ages, 60, ages-1, 3), 15)
	retiredWomen := ageing(band(ages, 55, ages-1, 3), 18)
	return demography.SocialGroupsDistribution{
		Primary: []demography.SocialGroup{
			group("children", 0.18, children, children),
			group("students", 0.07, students, students),
			group("workers", 0.55, workers, band(ages, 18, 60, 5)),
			group("retired", 0.20, retiredMen, retiredWomen),
		},
		Additional: []demography.SocialGroup{
			group("drivers", 0.30, band(ages, 18, 80, 4), band(ages, 18, 75, 4)),
			group("disabled", 0.05, ageing(band(ages, 0, ages-1, 0), -40), ageing(band(ages, 0, ages-1, 0), -45)),
		},
	}
}

// Survivability returns Gompertz-style coefficients with an infant mortality
// bump: the chance of surviving from age i to i+1 for i < ages-1.
func Survivability(ages int) demography.SurvivabilityCoefficients {
	curve := func(a, b, infant float64) []float64 {
		out := make([]float64, ages-1)
		for age := range out {
			q := a * math.Exp(b*float64(age))
			if age == 0 {
				q += infant
			}
			out[age] = math.Max(0, 1-math.Min(q, 1))
		}
		return out
	}
	return demography.SurvivabilityCoefficients{
		Men:   curve(0.0004, 0.085, 0.005),
		Women: curve(0.0002, 0.09, 0.004),
	}
}
