package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title     lipgloss.Style
	label     lipgloss.Style
	value     lipgloss.Style
	treatment lipgloss.Style
	control   lipgloss.Style
	running   lipgloss.Style
	paused    lipgloss.Style
	hint      lipgloss.Style
	accent    lipgloss.Style
	panel     lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(t.Title),
		label:     lipgloss.NewStyle().Foreground(t.Muted).Width(14),
		value:     lipgloss.NewStyle().Foreground(t.Text).Bold(true),
		treatment: lipgloss.NewStyle().Foreground(t.Treatment).Bold(true),
		control:   lipgloss.NewStyle().Foreground(t.Control).Bold(true),
		running:   lipgloss.NewStyle().Bold(true).Foreground(t.Good),
		paused:    lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		hint:      lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		accent:    lipgloss.NewStyle().Foreground(t.Accent),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 2),
	}
}

// HeaderStyle is used by the CLI for section headings.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ThemeDefault.Title).
	BorderStyle(lipgloss.NormalBorder()).
	BorderBottom(true).
	BorderForeground(ThemeDefault.Muted)

// ProgressBar renders a fixed-width bar for fraction in [0, 1].
func ProgressBar(fraction float64, width int, style lipgloss.Style) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return style.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
}

// Sparkline renders values as a row of block characters scaled between
// their min and max.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	var b strings.Builder
	for _, v := range values {
		idx := int((v - lo) / rng * float64(len(chars)-1))
		idx = max(0, min(idx, len(chars)-1))
		b.WriteRune(chars[idx])
	}
	return b.String()
}
