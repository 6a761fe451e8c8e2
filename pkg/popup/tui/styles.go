package tui

import "github.com/charmbracelet/lipgloss"

var (
	salmonPink  = lipgloss.Color("#FFB3BA")
	mintGreen   = lipgloss.Color("#A8E6CF")
	mutedGray   = lipgloss.Color("#6B7280")
	brightWhite = lipgloss.Color("#F9FAFB")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(salmonPink).
			Bold(true)

	selectorStyle = lipgloss.NewStyle().
			Foreground(brightWhite).
			Padding(0, 1)

	focusedSelectorStyle = selectorStyle.
				Foreground(salmonPink).
				Bold(true).
				Underline(true)

	resultBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mintGreen).
			Padding(0, 1)

	alertStyle = lipgloss.NewStyle().
			Foreground(salmonPink)

	statusStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedGray)
)
