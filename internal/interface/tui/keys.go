package tui

import "github.com/charmbracelet/bubbles/key"

type keymap struct {
	Next      key.Binding
	Prev      key.Binding
	MoveLeft  key.Binding
	MoveRight key.Binding
	Add       key.Binding
	Rename    key.Binding
	Remove    key.Binding
	Unlock    key.Binding
	Lock      key.Binding
	Password  key.Binding
	Clear     key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	ZoomReset key.Binding
	Reload    key.Binding
	Copy      key.Binding
	Help      key.Binding
	Quit      key.Binding
}

// ShortHelp implements help.KeyMap.
func (k keymap) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(
			key.WithKeys("left", "right"),
			key.WithHelp("←/→", "switch"),
		),
		k.Add, k.Remove, k.Password, k.Lock,
		key.NewBinding(
			key.WithKeys("+", "-", "0"),
			key.WithHelp("+/-/0", "zoom"),
		),
		k.Quit,
		key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
	}
}

// FullHelp implements help.KeyMap.
func (k keymap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Next, k.Prev, k.MoveLeft, k.MoveRight, k.Quit},
		{k.Add, k.Rename, k.Remove, k.Copy},
		{k.Password, k.Clear, k.Lock, k.Unlock},
		{k.ZoomIn, k.ZoomOut, k.ZoomReset, k.Reload},
	}
}

var defaultKeymap = keymap{
	Next: key.NewBinding(
		key.WithKeys("right", "tab"),
		key.WithHelp("→/tab", "next account"),
	),
	Prev: key.NewBinding(
		key.WithKeys("left", "shift+tab"),
		key.WithHelp("←/shift+tab", "previous account"),
	),
	MoveLeft: key.NewBinding(
		key.WithKeys("["),
		key.WithHelp("[", "move left"),
	),
	MoveRight: key.NewBinding(
		key.WithKeys("]"),
		key.WithHelp("]", "move right"),
	),
	Add: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "add"),
	),
	Rename: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "rename"),
	),
	Remove: key.NewBinding(
		key.WithKeys("x"),
		key.WithHelp("x", "remove"),
	),
	Unlock: key.NewBinding(
		key.WithKeys("enter", "u"),
		key.WithHelp("enter", "unlock"),
	),
	Lock: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "lock"),
	),
	Password: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "password"),
	),
	Clear: key.NewBinding(
		key.WithKeys("P"),
		key.WithHelp("P", "remove password"),
	),
	ZoomIn: key.NewBinding(
		key.WithKeys("+", "="),
		key.WithHelp("+", "zoom in"),
	),
	ZoomOut: key.NewBinding(
		key.WithKeys("-"),
		key.WithHelp("-", "zoom out"),
	),
	ZoomReset: key.NewBinding(
		key.WithKeys("0"),
		key.WithHelp("0", "reset zoom"),
	),
	Reload: key.NewBinding(
		key.WithKeys("R"),
		key.WithHelp("R", "reload"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy profile path"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
}
