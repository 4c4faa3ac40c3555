// Package effect computes group summaries and standardized effect sizes over
// a long-format trajectory table.
//
//   - [CohensD]: pooled-SD standardized mean difference
//   - [GroupMeans]: mean/SD/N per (t, group)
//   - [EffectSizes]: Treatment-vs-Control d per t
//   - [Peak]: the step of maximal effect
//
// Sample variances use the n-1 denominator.
package effect

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/growthsim/internal/growth"
)

// CohensD returns (mean(a) - mean(b)) / pooled SD. It is NaN when either
// group has fewer than two samples and 0 when the pooled SD is 0.
func CohensD(a, b []float64) float64 {
	na, nb := len(a), len(b)
	if na < 2 || nb < 2 {
		return math.NaN()
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)

	pooled := math.Sqrt((float64(na-1)*varA + float64(nb-1)*varB) / float64(na+nb-2))
	if pooled == 0 {
		return 0
	}
	return (meanA - meanB) / pooled
}

type GroupMean struct {
	T      int          `json:"t"`
	Group  growth.Group `json:"group"`
	Mean   float64      `json:"mean"`
	StdDev float64      `json:"std"`
	N      int          `json:"n"`
}

type EffectSize struct {
	T          int     `json:"t"`
	D          float64 `json:"cohens_d"`
	NTreatment int     `json:"n_treatment"`
	NControl   int     `json:"n_control"`
}

type key struct {
	t int
	g growth.Group
}

func collect(rows []growth.Row) (map[key][]float64, []int) {
	byKey := make(map[key][]float64)
	seen := make(map[int]struct{})
	steps := make([]int, 0)
	for _, row := range rows {
		k := key{row.T, row.Group}
		byKey[k] = append(byKey[k], row.Score)
		if _, ok := seen[row.T]; !ok {
			seen[row.T] = struct{}{}
			steps = append(steps, row.T)
		}
	}
	sort.Ints(steps)
	return byKey, steps
}

// GroupMeans summarizes every (t, group) cell, ordered by t then group name.
func GroupMeans(rows []growth.Row) []GroupMean {
	byKey, _ := collect(rows)
	out := make([]GroupMean, 0, len(byKey))
	for k, scores := range byKey {
		gm := GroupMean{T: k.t, Group: k.g, N: len(scores)}
		if len(scores) > 1 {
			gm.Mean, gm.StdDev = stat.MeanStdDev(scores, nil)
		} else {
			gm.Mean = scores[0]
		}
		out = append(out, gm)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].T != out[j].T {
			return out[i].T < out[j].T
		}
		return out[i].Group < out[j].Group
	})
	return out
}

// EffectSizes returns Treatment-vs-Control Cohen's d for every step present
// in rows.
func EffectSizes(rows []growth.Row) []EffectSize {
	byKey, steps := collect(rows)
	out := make([]EffectSize, 0, len(steps))
	for _, t := range steps {
		treated := byKey[key{t, growth.Treatment}]
		control := byKey[key{t, growth.Control}]
		out = append(out, EffectSize{
			T:          t,
			D:          CohensD(treated, control),
			NTreatment: len(treated),
			NControl:   len(control),
		})
	}
	return out
}

// Peak returns the entry with the largest non-NaN d. ok is false when no
// entry has a defined effect.
func Peak(effects []EffectSize) (best EffectSize, ok bool) {
	for _, e := range effects {
		if math.IsNaN(e.D) {
			continue
		}
		if !ok || e.D > best.D {
			best, ok = e, true
		}
	}
	return best, ok
}

// Series extracts d values in step order, mapping NaN to 0 for charting.
func Series(effects []EffectSize) []float64 {
	out := make([]float64, len(effects))
	for i, e := range effects {
		if !math.IsNaN(e.D) {
			out[i] = e.D
		}
	}
	return out
}

// MeanSeries extracts the mean trajectory of group g in step order.
func MeanSeries(means []GroupMean, g growth.Group) []float64 {
	out := make([]float64, 0)
	for _, m := range means {
		if m.Group == g {
			out = append(out, m.Mean)
		}
	}
	return out
}
