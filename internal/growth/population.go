package growth

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ScoreDistribution is a normal distribution truncated to [Low, High].
type ScoreDistribution struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std" yaml:"std"`
	Low    float64 `json:"min" yaml:"min"`
	High   float64 `json:"max" yaml:"max"`
}

func (d ScoreDistribution) Validate() error {
	if !finite(d.Mean) {
		return Invalid("score.mean", d.Mean, "must be finite")
	}
	if d.StdDev <= 0 || !finite(d.StdDev) {
		return Invalid("score.std", d.StdDev, "must be positive and finite")
	}
	if !finite(d.Low) || !finite(d.High) {
		return Invalid("score bounds", [2]float64{d.Low, d.High}, "must be finite")
	}
	if d.Low >= d.High {
		return Invalid("score bounds", [2]float64{d.Low, d.High}, "low must be below high")
	}
	return nil
}

// RateDistribution is a normal distribution whose negative draws are
// floored to zero.
type RateDistribution struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std" yaml:"std"`
}

func (d RateDistribution) Validate() error {
	if !finite(d.Mean) {
		return Invalid("rate.mean", d.Mean, "must be finite")
	}
	if d.StdDev < 0 || !finite(d.StdDev) {
		return Invalid("rate.std", d.StdDev, "must be non-negative and finite")
	}
	return nil
}

// NewSource returns the seeded generator used for all population draws.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// GeneratePopulation draws n individuals with ids 0..n-1. All scores are
// drawn before all rates. The same seed yields the same population.
func GeneratePopulation(n int, score ScoreDistribution, rate RateDistribution, seed uint64) (Population, error) {
	if n <= 0 {
		return nil, Invalid("n", n, "population size must be positive")
	}
	if err := score.Validate(); err != nil {
		return nil, err
	}
	if err := rate.Validate(); err != nil {
		return nil, err
	}

	src := NewSource(seed)
	pop := make(Population, n)
	for i := range pop {
		pop[i].ID = i
		pop[i].InitialScore = truncatedNormal(score, src)
	}

	lr := distuv.Normal{Mu: rate.Mean, Sigma: rate.StdDev, Src: src}
	for i := range pop {
		r := rate.Mean
		if rate.StdDev > 0 {
			r = lr.Rand()
		}
		pop[i].BaselineRate = math.Max(r, 0)
	}
	return pop, nil
}

// truncatedNormal samples by inverting the normal CDF over [CDF(low), CDF(high)].
func truncatedNormal(d ScoreDistribution, src rand.Source) float64 {
	norm := distuv.Normal{Mu: d.Mean, Sigma: d.StdDev}
	lo, hi := norm.CDF(d.Low), norm.CDF(d.High)
	if hi <= lo {
		// Both bounds sit in the same far tail; the nearer bound carries
		// all the mass.
		if d.Mean < d.Low {
			return d.Low
		}
		return d.High
	}
	u := distuv.Uniform{Min: lo, Max: hi, Src: src}.Rand()
	x := norm.Quantile(u)
	if x < d.Low {
		return d.Low
	}
	if x > d.High {
		return d.High
	}
	return x
}
