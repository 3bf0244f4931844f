package viz

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/sdgsim/internal/export"
)

// Theme defines the TUI colours and the heatmap ramp.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Muted   lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	// Low and High are the ends of the heatmap ramp; hex form only.
	Low  lipgloss.Color
	High lipgloss.Color
}

// Ramp returns the Lab blend from Low to High shared with the SVG export.
func (t Theme) Ramp() (export.Ramp, error) {
	return export.NewRamp(string(t.Low), string(t.High))
}

var (
	ThemeInferno = Theme{
		Name:    "inferno",
		Primary: lipgloss.Color("#ff9f1c"),
		Accent:  lipgloss.Color("#ffbf69"),
		Muted:   lipgloss.Color("#666666"),
		Warning: lipgloss.Color("#ffcc00"),
		Error:   lipgloss.Color("#ff4444"),
		Low:     lipgloss.Color("#1b0c41"),
		High:    lipgloss.Color("#fcffa4"),
	}

	ThemeOcean = Theme{
		Name:    "ocean",
		Primary: lipgloss.Color("#00a8cc"),
		Accent:  lipgloss.Color("#ffd700"),
		Muted:   lipgloss.Color("#4488aa"),
		Warning: lipgloss.Color("#ffcc00"),
		Error:   lipgloss.Color("#ff4444"),
		Low:     lipgloss.Color("#001a33"),
		High:    lipgloss.Color("#e0f0ff"),
	}

	ThemeRetroGreen = Theme{
		Name:    "retro",
		Primary: lipgloss.Color("#00ff00"),
		Accent:  lipgloss.Color("#88ff88"),
		Muted:   lipgloss.Color("#005500"),
		Warning: lipgloss.Color("#ffff00"),
		Error:   lipgloss.Color("#ff0000"),
		Low:     lipgloss.Color("#001100"),
		High:    lipgloss.Color("#00ff00"),
	}

	ThemeMinimal = Theme{
		Name:    "minimal",
		Primary: lipgloss.Color("#ffffff"),
		Accent:  lipgloss.Color("#0088ff"),
		Muted:   lipgloss.Color("#888888"),
		Warning: lipgloss.Color("#ffaa00"),
		Error:   lipgloss.Color("#ff0000"),
		Low:     lipgloss.Color("#000000"),
		High:    lipgloss.Color("#ffffff"),
	}

	CurrentTheme = ThemeInferno

	Themes = []Theme{
		ThemeInferno,
		ThemeOcean,
		ThemeRetroGreen,
		ThemeMinimal,
	}
)

// GetTheme returns a theme by name
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeInferno
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

// nextTheme returns the theme after name in Themes, wrapping.
func nextTheme(name string) Theme {
	for i, t := range Themes {
		if t.Name == name {
			return Themes[(i+1)%len(Themes)]
		}
	}
	return Themes[0]
}
