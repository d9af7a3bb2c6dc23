// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// ChatKeyMap holds the chat screen bindings. It satisfies help.KeyMap.
type ChatKeyMap struct {
	Send       key.Binding
	Newline    key.Binding
	Abort      key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Top        key.Binding
	Bottom     key.Binding
	Clear      key.Binding
	Logs       key.Binding
	Quit       key.Binding
}

// Chat is the default chat keymap.
var Chat = ChatKeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	Newline: key.NewBinding(
		key.WithKeys("ctrl+j", "alt+enter"),
		key.WithHelp("ctrl+j", "newline"),
	),
	Abort: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "abort"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup", "ctrl+u"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown", "ctrl+d"),
		key.WithHelp("pgdn", "scroll down"),
	),
	Top: key.NewBinding(
		key.WithKeys("ctrl+home"),
		key.WithHelp("ctrl+home", "top"),
	),
	Bottom: key.NewBinding(
		key.WithKeys("ctrl+end"),
		key.WithHelp("ctrl+end", "bottom"),
	),
	Clear: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "new conversation"),
	),
	Logs: key.NewBinding(
		key.WithKeys("ctrl+o"),
		key.WithHelp("ctrl+o", "logs"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

// ShortHelp implements help.KeyMap.
func (k ChatKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Abort, k.Clear, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k ChatKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Newline, k.Abort},
		{k.ScrollUp, k.ScrollDown, k.Top, k.Bottom},
		{k.Clear, k.Logs, k.Quit},
	}
}
