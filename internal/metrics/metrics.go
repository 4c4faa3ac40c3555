package metrics

import (
	"math"

	"github.com/san-kum/growthsim/internal/effect"
	"github.com/san-kum/growthsim/internal/growth"
)

// FinalGap is the Treatment mean minus the Control mean at the last
// observed step.
type FinalGap struct {
	gap float64
	ok  bool
}

func NewFinalGap() *FinalGap { return &FinalGap{} }

func (f *FinalGap) Name() string { return "final_gap" }

func (f *FinalGap) Observe(t int, rows []growth.Row) {
	var sumT, sumC float64
	var nT, nC int
	for _, r := range rows {
		switch r.Group {
		case growth.Treatment:
			sumT += r.Score
			nT++
		case growth.Control:
			sumC += r.Score
			nC++
		}
	}
	if nT == 0 || nC == 0 {
		f.ok = false
		return
	}
	f.gap = sumT/float64(nT) - sumC/float64(nC)
	f.ok = true
}

func (f *FinalGap) Value() float64 {
	if !f.ok {
		return math.NaN()
	}
	return f.gap
}

func (f *FinalGap) Reset() {
	f.gap = 0
	f.ok = false
}

// PeakEffect tracks the largest Cohen's d seen over the run.
type PeakEffect struct {
	peak float64
	seen bool
}

func NewPeakEffect() *PeakEffect { return &PeakEffect{} }

func (p *PeakEffect) Name() string { return "peak_effect" }

func (p *PeakEffect) Observe(t int, rows []growth.Row) {
	treated := make([]float64, 0, len(rows))
	control := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.Group == growth.Treatment {
			treated = append(treated, r.Score)
		} else {
			control = append(control, r.Score)
		}
	}
	d := effect.CohensD(treated, control)
	if math.IsNaN(d) {
		return
	}
	if !p.seen || d > p.peak {
		p.peak = d
		p.seen = true
	}
}

func (p *PeakEffect) Value() float64 {
	if !p.seen {
		return math.NaN()
	}
	return p.peak
}

func (p *PeakEffect) Reset() {
	p.peak = 0
	p.seen = false
}

// MasteryShare is the fraction of the population at or above
// threshold*ceiling at the last observed step.
type MasteryShare struct {
	cutoff float64
	share  float64
}

func NewMasteryShare(ceiling, threshold float64) *MasteryShare {
	return &MasteryShare{cutoff: ceiling * threshold}
}

func (m *MasteryShare) Name() string { return "mastery_share" }

func (m *MasteryShare) Observe(t int, rows []growth.Row) {
	if len(rows) == 0 {
		m.share = 0
		return
	}
	n := 0
	for _, r := range rows {
		if r.Score >= m.cutoff {
			n++
		}
	}
	m.share = float64(n) / float64(len(rows))
}

func (m *MasteryShare) Value() float64 { return m.share }

func (m *MasteryShare) Reset() { m.share = 0 }

// MeanGain is the mean final score minus the mean initial score.
type MeanGain struct {
	initial, last float64
	started       bool
}

func NewMeanGain() *MeanGain { return &MeanGain{} }

func (m *MeanGain) Name() string { return "mean_gain" }

func (m *MeanGain) Observe(t int, rows []growth.Row) {
	if len(rows) == 0 {
		return
	}
	sum := 0.0
	for _, r := range rows {
		sum += r.Score
	}
	mean := sum / float64(len(rows))
	if !m.started {
		m.initial = mean
		m.started = true
	}
	m.last = mean
}

func (m *MeanGain) Value() float64 { return m.last - m.initial }

func (m *MeanGain) Reset() {
	m.initial, m.last = 0, 0
	m.started = false
}

// Defaults returns the metrics attached to every scenario run.
func Defaults(ceiling float64) []growth.Metric {
	return []growth.Metric{
		NewFinalGap(),
		NewPeakEffect(),
		NewMasteryShare(ceiling, 0.9),
		NewMeanGain(),
	}
}
