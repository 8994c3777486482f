package viz

import "github.com/charmbracelet/lipgloss"

// Theme defines color scheme for the TUI
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

var (
	ThemeField = Theme{
		Name:    "field",
		Primary: lipgloss.Color("#8bc34a"),
		Accent:  lipgloss.Color("#ffc107"),
		Text:    lipgloss.Color("#f1f8e9"),
		Muted:   lipgloss.Color("#6d7f5a"),
		Success: lipgloss.Color("#00e676"),
		Warning: lipgloss.Color("#ffab00"),
		Error:   lipgloss.Color("#ff5252"),
	}

	// Night is dim for a cab display after dark.
	ThemeNight = Theme{
		Name:    "night",
		Primary: lipgloss.Color("#b71c1c"),
		Accent:  lipgloss.Color("#e65100"),
		Text:    lipgloss.Color("#bf8f8f"),
		Muted:   lipgloss.Color("#4e2f2f"),
		Success: lipgloss.Color("#7f3f00"),
		Warning: lipgloss.Color("#e65100"),
		Error:   lipgloss.Color("#ff1744"),
	}

	ThemeMinimal = Theme{
		Name:    "minimal",
		Primary: lipgloss.Color("#ffffff"),
		Accent:  lipgloss.Color("#0088ff"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#888888"),
		Success: lipgloss.Color("#00ff00"),
		Warning: lipgloss.Color("#ffaa00"),
		Error:   lipgloss.Color("#ff0000"),
	}

	CurrentTheme = ThemeField

	Themes = []Theme{
		ThemeField,
		ThemeNight,
		ThemeMinimal,
	}
)

// GetTheme falls back to the field theme for unknown names.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeField
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

// NextTheme switches to the theme after the current one.
func NextTheme() {
	names := ThemeNames()
	for i, name := range names {
		if name == CurrentTheme.Name {
			SetTheme(names[(i+1)%len(names)])
			return
		}
	}
	SetTheme(names[0])
}
