// Package scenario assigns individuals to Treatment or Control before a run.
package scenario

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/san-kum/growthsim/internal/growth"
)

// Assigner fixes the group of every individual in a population.
type Assigner interface {
	Name() string
	Assign(pop growth.Population) (growth.Assignment, error)
}

// Threshold returns the q-quantile of the population's initial scores. The
// quantile sits at rank q*(n-1) of the sorted scores and interpolates
// linearly between neighbours (Hyndman and Fan type 7), so with n=10 and
// q=0.95 it lies between the 9th and 10th scores.
func Threshold(pop growth.Population, q float64) (float64, error) {
	if len(pop) == 0 {
		return 0, growth.Invalid("population", 0, "must not be empty")
	}
	if !(q > 0 && q <= 1) {
		return 0, growth.Invalid("quantile", q, "must be in (0, 1]")
	}
	scores := pop.Scores()
	slices.Sort(scores)
	return interpolate(scores, q), nil
}

func interpolate(sorted []float64, q float64) float64 {
	h := q * float64(len(sorted)-1)
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// TargetedCount is the number of individuals the Targeted rule treats.
func TargetedCount(pop growth.Population, q float64) (int, error) {
	threshold, err := Threshold(pop, q)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ind := range pop {
		if ind.InitialScore <= threshold {
			n++
		}
	}
	return n, nil
}

// Targeted treats the low achievers: everyone at or below the Quantile of
// initial scores.
type Targeted struct {
	Quantile float64
}

func (t Targeted) Name() string { return "targeted" }

func (t Targeted) Assign(pop growth.Population) (growth.Assignment, error) {
	threshold, err := Threshold(pop, t.Quantile)
	if err != nil {
		return nil, err
	}
	groups := make(growth.Assignment, len(pop))
	for _, ind := range pop {
		if ind.InitialScore <= threshold {
			groups[ind.ID] = growth.Treatment
		} else {
			groups[ind.ID] = growth.Control
		}
	}
	return groups, nil
}

// Randomized treats Treated individuals drawn uniformly without replacement.
// With Treated == 0 the count matches what Targeted{Quantile} would treat,
// giving a general-population trial of the same size.
type Randomized struct {
	Treated  int
	Quantile float64
	Seed     uint64
}

func (r Randomized) Name() string { return "general" }

func (r Randomized) Assign(pop growth.Population) (growth.Assignment, error) {
	if len(pop) == 0 {
		return nil, growth.Invalid("population", 0, "must not be empty")
	}
	k := r.Treated
	if k < 0 || k > len(pop) {
		return nil, growth.Invalid("treated", k, "must be in [0, population size]")
	}
	if k == 0 {
		var err error
		if k, err = TargetedCount(pop, r.Quantile); err != nil {
			return nil, err
		}
	}

	rng := rand.New(growth.NewSource(r.Seed))
	order := rng.Perm(len(pop))

	groups := make(growth.Assignment, len(pop))
	for rank, idx := range order {
		if rank < k {
			groups[pop[idx].ID] = growth.Treatment
		} else {
			groups[pop[idx].ID] = growth.Control
		}
	}
	return groups, nil
}
