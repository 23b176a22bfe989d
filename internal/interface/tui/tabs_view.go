package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/neilberkman/acctabs/internal/core/session"
)

func (m Model) updateTabs(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := defaultKeymap

	// Keys that need no account
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Help):
		m.mode = helpView
		return m, nil
	case key.Matches(msg, keys.Add):
		return m.openPrompt(promptAdd, 0, "")
	}

	t, ok := m.current()
	if !ok {
		return m, nil
	}
	id := t.id

	switch {
	case key.Matches(msg, keys.Next):
		return m.selectTab((m.active + 1) % len(m.tabs))
	case key.Matches(msg, keys.Prev):
		return m.selectTab((m.active - 1 + len(m.tabs)) % len(m.tabs))

	case key.Matches(msg, keys.MoveLeft):
		if m.active > 0 {
			from := m.active
			return m, run("", func(ctx context.Context) error { return m.reg.Reorder(ctx, from, from-1) })
		}
	case key.Matches(msg, keys.MoveRight):
		if m.active < len(m.tabs)-1 {
			from := m.active
			return m, run("", func(ctx context.Context) error { return m.reg.Reorder(ctx, from, from+1) })
		}

	case key.Matches(msg, keys.Rename):
		return m.openPrompt(promptRename, id, t.name)
	case key.Matches(msg, keys.Remove):
		m.mode = confirmView
		m.target = id
		return m, nil
	case key.Matches(msg, keys.Copy):
		return m, copyToClipboard(t.storagePath)

	case key.Matches(msg, keys.Unlock):
		if t.state == session.Locked {
			return m.openPrompt(promptUnlock, id, "")
		}
	case key.Matches(msg, keys.Lock):
		if !t.hasPassword {
			m.setError("Set a password first (p)")
			return m, nil
		}
		return m, run("Locked "+t.displayName(), func(ctx context.Context) error { return m.reg.Lock(ctx, id) })
	case key.Matches(msg, keys.Password):
		if t.hasPassword {
			return m.openPrompt(promptCurrent, id, "")
		}
		return m.openPrompt(promptNew, id, "")
	case key.Matches(msg, keys.Clear):
		if !t.hasPassword {
			m.setError(t.displayName() + " has no password")
			return m, nil
		}
		return m.openPrompt(promptClearCurrent, id, "")

	case key.Matches(msg, keys.ZoomIn):
		return m, zoomCmd("", func(ctx context.Context) (float64, error) { return m.reg.ZoomIn(ctx, id) })
	case key.Matches(msg, keys.ZoomOut):
		return m, zoomCmd("", func(ctx context.Context) (float64, error) { return m.reg.ZoomOut(ctx, id) })
	case key.Matches(msg, keys.ZoomReset):
		return m, zoomCmd("", func(ctx context.Context) (float64, error) { return m.reg.ResetZoom(ctx, id) })
	case key.Matches(msg, keys.Reload):
		return m, run("Reloaded "+t.displayName(), func(ctx context.Context) error { return m.reg.Reload(ctx, id) })
	}

	// 1-9 jump straight to a tab
	if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		if i := int(s[0] - '1'); i < len(m.tabs) {
			return m.selectTab(i)
		}
	}
	return m, nil
}

func (m Model) selectTab(i int) (tea.Model, tea.Cmd) {
	if i == m.active {
		return m, nil
	}
	m.active = i
	return m, activate(m.reg, m.tabs[i].id)
}

func (m Model) openPrompt(kind promptKind, target int64, value string) (tea.Model, tea.Cmd) {
	m.mode = promptView
	m.prompt = kind
	m.target = target
	if kind == promptAdd || kind == promptRename || kind == promptCurrent || kind == promptClearCurrent {
		m.secrets = nil
	}

	m.input.Reset()
	m.input.SetValue(value)
	m.input.CursorEnd()
	switch kind {
	case promptAdd, promptRename:
		m.input.EchoMode = textinput.EchoNormal
		m.input.Placeholder = "account name"
	default:
		m.input.EchoMode = textinput.EchoPassword
		m.input.EchoCharacter = '•'
		m.input.Placeholder = ""
	}
	return m, m.input.Focus()
}

func (m Model) closePrompt() Model {
	m.mode = tabsView
	m.input.Blur()
	m.input.Reset()
	m.secrets = nil
	return m
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return m.closePrompt(), nil
	case "enter":
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	value := m.input.Value()
	id := m.target

	switch m.prompt {
	case promptAdd:
		name := strings.TrimSpace(value)
		if name == "" {
			return m, nil
		}
		return m.closePrompt(), addAccount(m.reg, name)

	case promptRename:
		name := strings.TrimSpace(value)
		if name == "" {
			return m, nil
		}
		return m.closePrompt(), run("Renamed to "+name, func(ctx context.Context) error { return m.reg.Rename(ctx, id, name) })

	case promptUnlock:
		return m.closePrompt(), run("", func(ctx context.Context) error { return m.reg.Unlock(ctx, id, value) })

	case promptCurrent:
		secrets := []string{value}
		next, cmd := m.openPrompt(promptNew, id, "")
		nm := next.(Model)
		nm.secrets = secrets
		return nm, cmd

	case promptNew:
		if value == "" {
			return m, nil
		}
		secrets := append(m.secrets, value)
		next, cmd := m.openPrompt(promptRepeat, id, "")
		nm := next.(Model)
		nm.secrets = secrets
		return nm, cmd

	case promptRepeat:
		var current, secret string
		switch len(m.secrets) {
		case 1:
			secret = m.secrets[0]
		case 2:
			current, secret = m.secrets[0], m.secrets[1]
		}
		nm := m.closePrompt()
		if value != secret {
			nm.setError("Passwords do not match")
			return nm, nil
		}
		return nm, run("Password set", func(ctx context.Context) error {
			return m.reg.SetPassword(ctx, id, current, secret)
		})

	case promptClearCurrent:
		return m.closePrompt(), run("Password removed", func(ctx context.Context) error {
			return m.reg.ClearPassword(ctx, id, value)
		})
	}
	return m, nil
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mode = tabsView
	if msg.String() != "y" {
		return m, nil
	}
	i := m.find(m.target)
	if i < 0 {
		return m, nil
	}
	return m, removeAccount(m.reg, m.target, m.tabs[i].displayName())
}

func (m Model) viewTabs() string {
	var b strings.Builder
	b.WriteString(m.viewTabBar())
	b.WriteString("\n\n")

	if t, ok := m.current(); ok {
		b.WriteString(m.viewBody(t))
	} else {
		b.WriteString(placeholderStyle.Render("No accounts yet. Press a to add one."))
	}
	b.WriteString("\n\n")

	switch m.mode {
	case promptView:
		b.WriteString(promptLabelStyle.Render(m.promptTitle()) + " " + m.input.View())
		b.WriteString("\n" + helpStyle.Render("enter confirm • esc cancel"))
	case confirmView:
		name := ""
		if i := m.find(m.target); i >= 0 {
			name = m.tabs[i].displayName()
		}
		b.WriteString(warnStyle.Render(fmt.Sprintf("Remove %s and delete its profile? (y/N)", name)))
	default:
		if m.status != "" {
			if m.statusErr {
				b.WriteString(errorStyle.Render(m.status))
			} else {
				b.WriteString(statusStyle.Render(m.status))
			}
			b.WriteString("\n")
		}
		b.WriteString(m.help.ShortHelpView(defaultKeymap.ShortHelp()))
	}
	return b.String()
}

func (m Model) viewTabBar() string {
	if len(m.tabs) == 0 {
		return titleStyle.Render("acctabs")
	}
	rendered := make([]string, len(m.tabs))
	for i, t := range m.tabs {
		label := t.label
		if label == "" {
			label = t.displayName()
		}
		if t.crash != "" {
			label += " !"
		}
		if i == m.active {
			rendered[i] = activeTabStyle.Render(label)
		} else {
			rendered[i] = tabStyle.Render(label)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) viewBody(t tab) string {
	switch t.state {
	case session.Locked:
		return placeholderStyle.Render(fmt.Sprintf("🔒 %s is locked\n\nPress enter to unlock.", t.displayName()))
	case session.Unlocking:
		return placeholderStyle.Render("Unlocking...")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(t.displayName()))
	b.WriteString("\n")

	page := "running in its own window"
	if !t.live {
		page = "not running (R to start)"
	}
	password := "none"
	if t.hasPassword {
		password = "set"
	}
	rows := [][2]string{
		{"Page", page},
		{"Zoom", fmt.Sprintf("%d%%", t.zoom)},
		{"Password", password},
		{"Profile", t.storagePath},
	}
	if !t.lastActive.IsZero() {
		rows = append(rows, [2]string{"Active", humanize.Time(t.lastActive)})
	}
	for _, r := range rows {
		b.WriteString(metaKeyStyle.Render(fmt.Sprintf("%-9s", r[0])) + r[1] + "\n")
	}
	if t.crash != "" {
		b.WriteString("\n" + errorStyle.Render(t.crash))
	}
	return bodyStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) promptTitle() string {
	switch m.prompt {
	case promptAdd:
		return "New account:"
	case promptRename:
		return "Rename to:"
	case promptUnlock:
		return "Password:"
	case promptCurrent, promptClearCurrent:
		return "Current password:"
	case promptNew:
		return "New password:"
	case promptRepeat:
		return "Repeat password:"
	}
	return ""
}
