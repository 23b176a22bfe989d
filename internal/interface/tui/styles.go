package tui

import "github.com/charmbracelet/lipgloss"

// Global styles used across views
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	// Tab bar styles
	tabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("246"))

	activeTabStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("170")).
			Bold(true).
			Underline(true)

	// Body styles
	bodyStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	placeholderStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(lipgloss.Color("246")) // Lighter gray that works better in dark terminals

	metaKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))

	// Status line styles
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("120"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("yellow")).
			Bold(true)

	promptLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("205"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)
