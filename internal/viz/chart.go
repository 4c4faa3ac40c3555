package viz

import (
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/growthsim/internal/effect"
	"github.com/san-kum/growthsim/internal/growth"
)

// asciigraph cannot interpolate a single point to a width.
func plottable(s []float64) []float64 {
	if len(s) == 1 {
		return []float64{s[0], s[0]}
	}
	return s
}

// MeansChart plots the Treatment and Control mean trajectories. Groups
// absent from means are skipped; the result is empty when both are.
func MeansChart(means []effect.GroupMean, caption string, width, height int) string {
	var (
		series [][]float64
		colors []asciigraph.AnsiColor
	)
	if s := effect.MeanSeries(means, growth.Treatment); len(s) > 0 {
		series = append(series, plottable(s))
		colors = append(colors, asciigraph.Red)
	}
	if s := effect.MeanSeries(means, growth.Control); len(s) > 0 {
		series = append(series, plottable(s))
		colors = append(colors, asciigraph.Blue)
	}
	if len(series) == 0 {
		return ""
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption(caption),
	)
}

// EffectChart plots Cohen's d per step. Undefined steps plot as 0.
func EffectChart(effects []effect.EffectSize, caption string, width, height int) string {
	if len(effects) == 0 {
		return ""
	}
	return asciigraph.Plot(plottable(effect.Series(effects)),
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(2),
		asciigraph.Caption(caption),
	)
}
