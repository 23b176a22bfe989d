package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/acctabs/internal/core/models"
	"github.com/neilberkman/acctabs/internal/core/registry"
	"github.com/neilberkman/acctabs/internal/core/session"
)

type viewMode int

const (
	tabsView viewMode = iota
	promptView
	confirmView
	helpView
)

type promptKind int

const (
	promptAdd promptKind = iota
	promptRename
	promptUnlock
	promptCurrent      // current password before setting a new one
	promptNew          // new password
	promptRepeat       // new password again
	promptClearCurrent // current password before clearing
)

// tab mirrors one registry session
type tab struct {
	id          int64
	name        string
	label       string
	state       session.LockState
	zoom        int
	storagePath string
	hasPassword bool
	live        bool
	lastActive  time.Time
	crash       string
}

type Model struct {
	reg    Registry
	mode   viewMode
	tabs   []tab
	active int
	width  int
	height int

	help help.Model

	// Prompt state
	input   textinput.Model
	prompt  promptKind
	target  int64
	secrets []string

	status    string
	statusErr bool
	focus     int64 // tab to select once the next snapshot arrives
}

func New(reg Registry) Model {
	input := textinput.New()
	input.CharLimit = 128
	return Model{
		reg:   reg,
		mode:  tabsView,
		help:  help.New(),
		input: input,
	}
}

func (m Model) Init() tea.Cmd {
	return loadSnapshot(m.reg)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-20, 10)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		// Mode-specific key handling
		switch m.mode {
		case tabsView:
			return m.updateTabs(msg)
		case promptView:
			return m.updatePrompt(msg)
		case confirmView:
			return m.updateConfirm(msg)
		case helpView:
			return m.updateHelp(msg)
		}

	case snapshotMsg:
		m.applySnapshot(msg.sessions)
		return m, nil

	case opDoneMsg:
		if msg.err != nil {
			m.setError(describe(msg.err))
		} else if msg.status != "" {
			m.setStatus(msg.status)
		}
		if msg.focus != 0 {
			m.focus = msg.focus
		}
		return m, loadSnapshot(m.reg)

	case errMsg:
		m.setError(describe(msg.err))
		return m, nil

	case sessionAddedMsg:
		if m.find(msg.id) < 0 {
			m.tabs = append(m.tabs, tab{id: msg.id, label: msg.label, state: session.Locked, zoom: 100})
		}
		return m, nil

	case sessionRemovedMsg:
		if i := m.find(msg.id); i >= 0 {
			m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
			if m.active >= len(m.tabs) {
				m.active = max(len(m.tabs)-1, 0)
			}
		}
		return m, nil

	case slotOrderMsg:
		m.reorder(msg.ids)
		return m, nil

	case lockStateMsg:
		if i := m.find(msg.id); i >= 0 {
			m.tabs[i].state = msg.state
			if msg.state == session.Unlocked {
				m.tabs[i].crash = ""
			}
		}
		return m, nil

	case zoomMsg:
		if i := m.find(msg.id); i >= 0 {
			m.tabs[i].zoom = msg.percent
		}
		return m, nil

	case labelMsg:
		if i := m.find(msg.id); i >= 0 {
			m.tabs[i].label = msg.label
		}
		return m, nil

	case crashMsg:
		if i := m.find(msg.id); i >= 0 {
			m.tabs[i].crash = msg.reason
			m.setError(fmt.Sprintf("%s crashed, reloading", m.tabs[i].displayName()))
		}
		return m, nil

	case teardownMsg:
		m.setError(fmt.Sprintf("Could not delete %s, run 'acctabs cleanup' later", msg.path))
		return m, nil
	}

	if m.mode == promptView {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.mode {
	case helpView:
		return m.viewHelp()
	default:
		return m.viewTabs()
	}
}

func (m *Model) find(id int64) int {
	for i, t := range m.tabs {
		if t.id == id {
			return i
		}
	}
	return -1
}

func (m *Model) current() (tab, bool) {
	if m.active < 0 || m.active >= len(m.tabs) {
		return tab{}, false
	}
	return m.tabs[m.active], true
}

// reorder puts tabs in ids order, keeping the active tab selected
func (m *Model) reorder(ids []int64) {
	var activeID int64
	if t, ok := m.current(); ok {
		activeID = t.id
	}

	byID := make(map[int64]tab, len(m.tabs))
	for _, t := range m.tabs {
		byID[t.id] = t
	}
	tabs := make([]tab, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			t = tab{id: id, state: session.Locked, zoom: 100}
		}
		tabs = append(tabs, t)
	}
	m.tabs = tabs

	if i := m.find(activeID); i >= 0 {
		m.active = i
	} else if m.active >= len(m.tabs) {
		m.active = max(len(m.tabs)-1, 0)
	}
}

func (m *Model) applySnapshot(infos []registry.SessionInfo) {
	activeID := m.focus
	if t, ok := m.current(); ok && activeID == 0 {
		activeID = t.id
	}
	m.focus = 0

	crashes := make(map[int64]string)
	for _, t := range m.tabs {
		if t.crash != "" {
			crashes[t.id] = t.crash
		}
	}

	m.tabs = make([]tab, 0, len(infos))
	for _, info := range infos {
		m.tabs = append(m.tabs, tab{
			id:          info.ID,
			name:        info.Name,
			label:       info.Label,
			state:       info.State,
			zoom:        models.ZoomPercent(info.Zoom),
			storagePath: info.StoragePath,
			hasPassword: info.HasPassword,
			live:        info.Live,
			lastActive:  info.LastActive,
			crash:       crashes[info.ID],
		})
	}

	if i := m.find(activeID); i >= 0 {
		m.active = i
	} else if m.active >= len(m.tabs) {
		m.active = max(len(m.tabs)-1, 0)
	}
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
}

func (t tab) displayName() string {
	if t.name != "" {
		return t.name
	}
	return t.label
}
