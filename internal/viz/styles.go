package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/agsteer/internal/uturn"
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(42)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
)

func helpStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Muted).MarginTop(1)
}

func headerStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Primary).Bold(true).MarginBottom(1)
}

func valueStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Text)
}

func graphStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Accent)
}

func fieldStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Primary)
}

// statusStyle colours the turn phase: green while on the line, amber while
// a turn is planned or driven, red at the end of the field or after a
// missed turn.
func statusStyle(s uturn.Status) lipgloss.Style {
	st := lipgloss.NewStyle().Bold(true)
	switch s {
	case uturn.StatusIdle, uturn.StatusApproaching, uturn.StatusCompleted:
		return st.Foreground(CurrentTheme.Success)
	case uturn.StatusEndOfField, uturn.StatusTurnMissed:
		return st.Foreground(CurrentTheme.Error)
	}
	return st.Foreground(CurrentTheme.Warning)
}

// xteStyle turns amber past 5 cm and red past 20 cm.
func xteStyle(xte float64) lipgloss.Style {
	if xte < 0 {
		xte = -xte
	}
	switch {
	case xte > 0.20:
		return lipgloss.NewStyle().Foreground(CurrentTheme.Error)
	case xte > 0.05:
		return lipgloss.NewStyle().Foreground(CurrentTheme.Warning)
	}
	return lipgloss.NewStyle().Foreground(CurrentTheme.Success)
}

func ProgressBar(percent float64, width int) string {
	filled := int(percent * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Render(bar)
}

// SteerBar shows the wheel angle as a marker on a centred scale.
func SteerBar(angle, max float64, width int) string {
	if width < 3 {
		width = 3
	}
	if max <= 0 {
		max = 1
	}
	ratio := angle / max
	if ratio > 1 {
		ratio = 1
	} else if ratio < -1 {
		ratio = -1
	}
	mid := width / 2
	pos := mid + int(ratio*float64(mid))
	if pos >= width {
		pos = width - 1
	}
	b := []rune(strings.Repeat("─", width))
	b[mid] = '┼'
	b[pos] = '●'
	return string(b)
}
