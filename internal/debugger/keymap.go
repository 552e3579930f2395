package debugger

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings
type KeyMap struct {
	Step    key.Binding
	Run     key.Binding
	Tab     key.Binding
	BackTab key.Binding
	Up      key.Binding
	Down    key.Binding
	Quit    key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Step, k.Run, k.Tab, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Step, k.Run},
		{k.Tab, k.BackTab, k.Up, k.Down, k.Quit},
	}
}

var keys = KeyMap{
	Step:    key.NewBinding(key.WithKeys("s", " ", "n"), key.WithHelp("s/space", "step")),
	Run:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "run to end")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch view")),
	BackTab: key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous view")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "scroll up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "scroll down")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}
