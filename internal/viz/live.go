package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/growthsim/internal/effect"
	"github.com/san-kum/growthsim/internal/experiment"
	"github.com/san-kum/growthsim/internal/growth"
)

const (
	tickInterval = 400 * time.Millisecond
	chartWidth   = 50
	chartHeight  = 10
)

type TickMsg time.Time

type scenarioView struct {
	name    string
	treated int
	size    int
	means   []effect.GroupMean
	effects []effect.EffectSize
}

// Model replays a finished experiment one step at a time.
type Model struct {
	views    []scenarioView
	current  int
	step     int
	steps    int
	running  bool
	theme    int
	styles   styles
	showHelp bool
}

func NewModel(result *experiment.Result) Model {
	views := make([]scenarioView, 0, len(result.Scenarios))
	steps := 0
	for _, sr := range result.Scenarios {
		views = append(views, scenarioView{
			name:    sr.Name,
			treated: sr.Treated,
			size:    sr.Result.Size,
			means:   sr.Means,
			effects: sr.Effects,
		})
		steps = max(steps, sr.Result.Steps)
	}

	return Model{
		views:   views,
		steps:   steps,
		running: true,
		styles:  newStyles(Themes[0]),
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if !m.running && m.step >= m.steps {
				m.step = 0
			}
			m.running = !m.running
		case "[":
			m.running = false
			m.scrub(-1)
		case "]":
			m.running = false
			m.scrub(1)
		case "tab":
			if len(m.views) > 0 {
				m.current = (m.current + 1) % len(m.views)
			}
		case "r":
			m.step = 0
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
			m.styles = newStyles(Themes[m.theme])
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			if m.step < m.steps {
				m.step++
			}
			if m.step >= m.steps {
				m.running = false
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) scrub(dir int) {
	m.step = max(0, min(m.step+dir, m.steps))
}

// WithTheme starts the viewer on the named theme.
func (m Model) WithTheme(name string) (Model, error) {
	for i, t := range Themes {
		if t.Name == name {
			m.theme = i
			m.styles = newStyles(t)
			return m, nil
		}
	}
	return m, fmt.Errorf("unknown theme: %s (available: %v)", name, ThemeNames())
}

func (m Model) Step() int     { return m.step }
func (m Model) Running() bool { return m.running }
func (m Model) Theme() string { return Themes[m.theme].Name }

func (m Model) Scenario() string {
	if len(m.views) == 0 {
		return ""
	}
	return m.views[m.current].name
}

// upTo returns the means with t <= step.
func upTo(means []effect.GroupMean, step int) []effect.GroupMean {
	out := make([]effect.GroupMean, 0, len(means))
	for _, gm := range means {
		if gm.T <= step {
			out = append(out, gm)
		}
	}
	return out
}

func meanAt(means []effect.GroupMean, step int, treated bool) (float64, bool) {
	for _, gm := range means {
		if gm.T == step && (gm.Group == growth.Treatment) == treated {
			return gm.Mean, true
		}
	}
	return 0, false
}

func (m Model) View() string {
	s := m.styles
	if len(m.views) == 0 {
		return s.hint.Render("no scenarios to replay") + "\n"
	}
	v := m.views[m.current]

	var b strings.Builder
	b.WriteString(s.title.Render(fmt.Sprintf("growthsim replay  %s (%d/%d)", v.name, m.current+1, len(m.views))))
	b.WriteString("  ")
	if m.running {
		b.WriteString(s.running.Render("▶ RUNNING"))
	} else {
		b.WriteString(s.paused.Render("⏸ PAUSED"))
	}
	b.WriteString("\n\n")

	frac := 1.0
	if m.steps > 0 {
		frac = float64(m.step) / float64(m.steps)
	}
	row := func(label, value string) {
		b.WriteString(s.label.Render(label) + value + "\n")
	}
	row("t", s.value.Render(fmt.Sprintf("%d/%d ", m.step, m.steps))+ProgressBar(frac, 20, s.value))
	row("treated", s.value.Render(fmt.Sprintf("%d of %d", v.treated, v.size)))

	tMean, tok := meanAt(v.means, m.step, true)
	cMean, cok := meanAt(v.means, m.step, false)
	if tok {
		row("treatment", s.treatment.Render(fmt.Sprintf("%.2f", tMean)))
	}
	if cok {
		row("control", s.control.Render(fmt.Sprintf("%.2f", cMean)))
	}
	if tok && cok {
		row("gap", s.value.Render(fmt.Sprintf("%+.2f", tMean-cMean)))
	}

	d := math.NaN()
	if m.step < len(v.effects) {
		d = v.effects[m.step].D
	}
	if math.IsNaN(d) {
		row("cohen's d", s.hint.Render("undefined"))
	} else {
		row("cohen's d", s.value.Render(fmt.Sprintf("%+.3f", d)))
	}
	if n := min(m.step+1, len(v.effects)); n > 0 {
		row("d so far", s.accent.Render(Sparkline(effect.Series(v.effects[:n]))))
	}

	if chart := MeansChart(upTo(v.means, m.step), "group means (red: Treatment, blue: Control)", chartWidth, chartHeight); chart != "" {
		b.WriteString("\n" + chart + "\n")
	}

	if m.showHelp {
		help := lipgloss.JoinVertical(lipgloss.Left,
			"space  pause/resume",
			"[ ]    step back/forward",
			"tab    next scenario",
			"r      rewind",
			"t      theme",
			"q      quit",
		)
		b.WriteString("\n" + s.panel.Render(help) + "\n")
	} else {
		b.WriteString("\n" + s.hint.Render("space pause • [ ] scrub • tab scenario • ? help • q quit") + "\n")
	}

	return b.String()
}
