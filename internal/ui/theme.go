package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme bundles the styles for one color scheme. The viewer ships a dark
// and a light scheme, switchable at runtime.
type Theme struct {
	Name string

	Header    lipgloss.Style
	Pane      lipgloss.Style
	PaneTitle lipgloss.Style
	Status    lipgloss.Style
	Error     lipgloss.Style
	Help      lipgloss.Style

	LightSquare lipgloss.Style
	DarkSquare  lipgloss.Style
	BoardLabel  lipgloss.Style

	Move        lipgloss.Style
	CurrentMove lipgloss.Style
	MoveNumber  lipgloss.Style

	ScoreWhite lipgloss.Style
	ScoreBlack lipgloss.Style
	Depth      lipgloss.Style
}

// NewTheme returns the named theme, defaulting to dark.
func NewTheme(name string) Theme {
	if name == "light" {
		return lightTheme()
	}
	return darkTheme()
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t.Name == "dark" {
		return lightTheme()
	}
	return darkTheme()
}

func darkTheme() Theme {
	return Theme{
		Name: "dark",

		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7dd3fc")),
		Pane:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#475569")).Padding(0, 1),
		PaneTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#e2e8f0")),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8")),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f87171")),
		Help:      lipgloss.NewStyle().Foreground(lipgloss.Color("#64748b")),

		LightSquare: lipgloss.NewStyle().Background(lipgloss.Color("#b58863")).Foreground(lipgloss.Color("#1e1e1e")),
		DarkSquare:  lipgloss.NewStyle().Background(lipgloss.Color("#8b5a2b")).Foreground(lipgloss.Color("#1e1e1e")),
		BoardLabel:  lipgloss.NewStyle().Foreground(lipgloss.Color("#64748b")),

		Move:        lipgloss.NewStyle().Foreground(lipgloss.Color("#cbd5e1")),
		CurrentMove: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f172a")).Background(lipgloss.Color("#7dd3fc")),
		MoveNumber:  lipgloss.NewStyle().Foreground(lipgloss.Color("#64748b")),

		ScoreWhite: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ade80")),
		ScoreBlack: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f87171")),
		Depth:      lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8")),
	}
}

func lightTheme() Theme {
	return Theme{
		Name: "light",

		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0369a1")),
		Pane:      lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#94a3b8")).Padding(0, 1),
		PaneTitle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1e293b")),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("#475569")),
		Error:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#b91c1c")),
		Help:      lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8")),

		LightSquare: lipgloss.NewStyle().Background(lipgloss.Color("#f0d9b5")).Foreground(lipgloss.Color("#1e1e1e")),
		DarkSquare:  lipgloss.NewStyle().Background(lipgloss.Color("#b58863")).Foreground(lipgloss.Color("#1e1e1e")),
		BoardLabel:  lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8")),

		Move:        lipgloss.NewStyle().Foreground(lipgloss.Color("#334155")),
		CurrentMove: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f8fafc")).Background(lipgloss.Color("#0369a1")),
		MoveNumber:  lipgloss.NewStyle().Foreground(lipgloss.Color("#94a3b8")),

		ScoreWhite: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#15803d")),
		ScoreBlack: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#b91c1c")),
		Depth:      lipgloss.NewStyle().Foreground(lipgloss.Color("#475569")),
	}
}
