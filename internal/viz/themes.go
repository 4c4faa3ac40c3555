package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines the color scheme for the viewer.
type Theme struct {
	Name      string
	Title     lipgloss.Color
	Accent    lipgloss.Color
	Treatment lipgloss.Color
	Control   lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Good      lipgloss.Color
	Warning   lipgloss.Color
}

var (
	ThemeDefault = Theme{
		Name:      "default",
		Title:     lipgloss.Color("#00ffff"),
		Accent:    lipgloss.Color("#ff00ff"),
		Treatment: lipgloss.Color("#ff6b6b"),
		Control:   lipgloss.Color("#4dabf7"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#666688"),
		Good:      lipgloss.Color("#00ff88"),
		Warning:   lipgloss.Color("#ffaa00"),
	}

	ThemeMinimal = Theme{
		Name:      "minimal",
		Title:     lipgloss.Color("#ffffff"),
		Accent:    lipgloss.Color("#cccccc"),
		Treatment: lipgloss.Color("#ffffff"),
		Control:   lipgloss.Color("#888888"),
		Text:      lipgloss.Color("#ffffff"),
		Muted:     lipgloss.Color("#666666"),
		Good:      lipgloss.Color("#ffffff"),
		Warning:   lipgloss.Color("#aaaaaa"),
	}

	ThemeOcean = Theme{
		Name:      "ocean",
		Title:     lipgloss.Color("#00a8cc"),
		Accent:    lipgloss.Color("#ffd700"),
		Treatment: lipgloss.Color("#ffd700"),
		Control:   lipgloss.Color("#0077be"),
		Text:      lipgloss.Color("#e0f0ff"),
		Muted:     lipgloss.Color("#4488aa"),
		Good:      lipgloss.Color("#00ff88"),
		Warning:   lipgloss.Color("#ffcc00"),
	}

	Themes = []Theme{
		ThemeDefault,
		ThemeMinimal,
		ThemeOcean,
	}
)

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
