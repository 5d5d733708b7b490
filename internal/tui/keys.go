package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start   key.Binding
	True    key.Binding
	False   key.Binding
	Undo    key.Binding
	Clear   key.Binding
	Confirm key.Binding
	Quit    key.Binding
	Abort   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Start:   key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "start")),
		True:    key.NewBinding(key.WithKeys("y", "t"), key.WithHelp("y", "true")),
		False:   key.NewBinding(key.WithKeys("n", "f"), key.WithHelp("n", "false")),
		Undo:    key.NewBinding(key.WithKeys("backspace"), key.WithHelp("⌫", "undo")),
		Clear:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "clear")),
		Confirm: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "confirm")),
		Quit:    key.NewBinding(key.WithKeys("q", "enter"), key.WithHelp("q", "quit")),
		Abort:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "abort")),
	}
}

// modeKeys adapts keyMap to help.KeyMap for the active mode.
type modeKeys struct {
	bindings []key.Binding
}

func (k modeKeys) ShortHelp() []key.Binding {
	return k.bindings
}

func (k modeKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.bindings}
}

func (k keyMap) forMode(m mode) modeKeys {
	switch m {
	case modeStart:
		return modeKeys{[]key.Binding{k.Start, k.Abort}}
	case modeMath:
		return modeKeys{[]key.Binding{k.True, k.False, k.Abort}}
	case modeRecall:
		return modeKeys{[]key.Binding{k.Undo, k.Clear, k.Confirm, k.Abort}}
	case modeEnd:
		return modeKeys{[]key.Binding{k.Quit}}
	default:
		return modeKeys{[]key.Binding{k.Abort}}
	}
}
