package commands

import "github.com/charmbracelet/lipgloss"

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Good    lipgloss.Color
	Bad     lipgloss.Color
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Good:    lipgloss.Color("#3fb950"),
	Bad:     lipgloss.Color("#f85149"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Cell   lipgloss.Style
	Dim    lipgloss.Style
	OK     lipgloss.Style
	Fail   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Header: lipgloss.NewStyle().Bold(true).Foreground(t.Primary).PaddingRight(2),
		Cell:   lipgloss.NewStyle().PaddingRight(2),
		Dim:    lipgloss.NewStyle().Foreground(t.Dim),
		OK:     lipgloss.NewStyle().Foreground(t.Good),
		Fail:   lipgloss.NewStyle().Foreground(t.Bad),
	}
}

var styles = NewStyles(DefaultTheme)
