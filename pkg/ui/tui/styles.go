package tui

import "github.com/charmbracelet/lipgloss"

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	orange  = lipgloss.Color("#FF6700")
	red     = lipgloss.Color("#FF0000")
	dim     = lipgloss.Color("#B0B0B0")
	faint   = lipgloss.Color("#626262")
	panelBg = lipgloss.Color("#1A1E37")

	headerStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Bold(true).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(magenta).
			Background(panelBg).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Background(magenta).
			Foreground(lipgloss.Color("#0A0E27")).
			Bold(true).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	valueStyle = lipgloss.NewStyle().Foreground(yellow)
	dimStyle   = lipgloss.NewStyle().Foreground(dim)

	timestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))

	helpStyle = lipgloss.NewStyle().
			Foreground(faint).
			Padding(0, 0, 0, 1)
)

// stateStyle colours the run state in the status line
func stateStyle(s string) lipgloss.Style {
	switch s {
	case "exhausted":
		return lipgloss.NewStyle().Foreground(green).Bold(true)
	case "aborted":
		return lipgloss.NewStyle().Foreground(red).Bold(true)
	case "fetching":
		return lipgloss.NewStyle().Foreground(cyan).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(yellow).Bold(true)
	}
}

func levelColor(level string) lipgloss.Color {
	switch level {
	case "ERROR":
		return red
	case "WARN":
		return orange
	case "SUCCESS":
		return green
	case "INFO":
		return cyan
	default:
		return dim
	}
}
