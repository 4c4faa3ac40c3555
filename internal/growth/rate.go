package growth

import "math"

// EffectiveRate returns the learning rate applied at step t (t >= 1).
// Treated individuals receive boost*exp(-decay*(t-1)) on top of their
// baseline; the term is largest at t=1 and vanishes as t grows.
func EffectiveRate(t int, baseline float64, treated bool, boost, decay float64) float64 {
	if !treated {
		return baseline
	}
	return baseline + boost*math.Exp(-decay*float64(t-1))
}

// UpdateScore moves score toward ceiling by the fraction rate. The result
// stays in [0, ceiling] only for rate in [0, 1]; callers clamp otherwise.
func UpdateScore(score, rate, ceiling float64) float64 {
	return score + rate*(ceiling-score)
}

// Clamp clips score to [0, ceiling].
func Clamp(score, ceiling float64) float64 {
	if score < 0 {
		return 0
	}
	if score > ceiling {
		return ceiling
	}
	return score
}

// Advance applies one update and clips it to [0, ceiling], reporting whether
// clipping was needed. An infinite rate against a zero gap yields NaN; the
// score then stays where it was.
func Advance(score, rate, ceiling float64) (float64, bool) {
	raw := UpdateScore(score, rate, ceiling)
	if math.IsNaN(raw) {
		return Clamp(score, ceiling), true
	}
	next := Clamp(raw, ceiling)
	return next, next != raw
}
