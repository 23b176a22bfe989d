package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) updateHelp(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Any key returns to the tabs
	m.mode = tabsView
	return m, nil
}

func (m Model) viewHelp() string {
	header := titleStyle.Render("acctabs - Help") + "\n\n"
	footer := "\n\n" + helpStyle.Render("1-9 jump to account • press any key to return")
	return header + m.help.FullHelpView(defaultKeymap.FullHelp()) + footer
}
