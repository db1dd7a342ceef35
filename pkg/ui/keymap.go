package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	SubmitMessage    key.Binding
	CancelCompletion key.Binding
	Retry            key.Binding
	ClearHistory     key.Binding
	DismissError     key.Binding
	ScrollUp         key.Binding
	ScrollDown       key.Binding

	Help key.Binding
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	SubmitMessage: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "submit"),
	),
	CancelCompletion: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	Retry: key.NewBinding(
		key.WithKeys("ctrl+r"),
		key.WithHelp("ctrl+r", "retry"),
	),
	ClearHistory: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "clear history"),
	),
	DismissError: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "dismiss"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("shift+up", "pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("shift+down", "pgdown"),
		key.WithHelp("pgdown", "scroll down"),
	),
	Help: key.NewBinding(
		key.WithKeys("f1"),
		key.WithHelp("f1", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.SubmitMessage, k.CancelCompletion, k.Retry, k.DismissError,
		k.ClearHistory, k.Help, k.Quit,
	}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SubmitMessage, k.CancelCompletion, k.Retry, k.DismissError},
		{k.ClearHistory, k.ScrollUp, k.ScrollDown},
		{k.Help, k.Quit},
	}
}
