// Package allocate distributes an integer delta across weighted buckets by
// categorical sampling with replacement. The adjustments always sum to delta.
package allocate

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// ErrNoBuckets is returned when a non-zero delta has nowhere to go.
	ErrNoBuckets = errors.New("allocate: no buckets")
	// ErrInvalidWeight is returned for negative, NaN or infinite weights.
	ErrInvalidWeight = errors.New("allocate: invalid weight")
)

// Allocate splits delta over len(weights) buckets. Each of |delta| units is
// drawn independently with probability proportional to its bucket weight, and
// the per-bucket counts carry the sign of delta. All-zero weights fall back to
// a uniform distribution.
func Allocate(weights []float64, delta int, rng *rand.Rand) ([]int, error) {
	if err := validate(weights); err != nil {
		return nil, err
	}
	out := make([]int, len(weights))
	if delta == 0 {
		return out, nil
	}
	if len(weights) == 0 {
		return nil, ErrNoBuckets
	}

	sign, n := 1, delta
	if delta < 0 {
		sign, n = -1, -delta
	}

	p := Normalize(weights)
	if only := soleBucket(p); only >= 0 {
		out[only] = delta
		return out, nil
	}

	cat := distuv.NewCategorical(p, rng)
	for i := 0; i < n; i++ {
		out[int(cat.Rand())] += sign
	}
	return out, nil
}

// Draw returns a single bucket index sampled proportionally to weights.
func Draw(weights []float64, rng *rand.Rand) (int, error) {
	if err := validate(weights); err != nil {
		return 0, err
	}
	if len(weights) == 0 {
		return 0, ErrNoBuckets
	}
	p := Normalize(weights)
	if only := soleBucket(p); only >= 0 {
		return only, nil
	}
	return int(distuv.NewCategorical(p, rng).Rand()), nil
}

// Normalize returns weights scaled to sum to one, or a uniform vector when the
// weights sum to zero. The input is not modified.
func Normalize(weights []float64) []float64 {
	p := make([]float64, len(weights))
	if len(weights) == 0 {
		return p
	}
	total := floats.Sum(weights)
	if total <= 0 {
		for i := range p {
			p[i] = 1 / float64(len(p))
		}
		return p
	}
	copy(p, weights)
	floats.Scale(1/total, p)
	return p
}

func validate(weights []float64) error {
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weights[%d] = %v", ErrInvalidWeight, i, w)
		}
	}
	return nil
}

// soleBucket returns the index of the only non-zero weight, or -1.
func soleBucket(p []float64) int {
	idx := -1
	for i, w := range p {
		if w == 0 {
			continue
		}
		if idx >= 0 {
			return -1
		}
		idx = i
	}
	return idx
}
