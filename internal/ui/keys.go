package ui

import (
	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Next  key.Binding
	Prev  key.Binding
	First key.Binding
	Last  key.Binding

	NextGame key.Binding
	PrevGame key.Binding

	ToggleAnalysis key.Binding
	ToggleTheme    key.Binding
	Flip           key.Binding
	Reload         key.Binding
	Quit           key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "next move"),
		),
		Prev: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "prev move"),
		),
		First: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("home", "start"),
		),
		Last: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("end", "end"),
		),
		NextGame: key.NewBinding(
			key.WithKeys("down", "j", "]"),
			key.WithHelp("↓", "next game"),
		),
		PrevGame: key.NewBinding(
			key.WithKeys("up", "k", "["),
			key.WithHelp("↑", "prev game"),
		),
		ToggleAnalysis: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "analysis"),
		),
		ToggleTheme: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "theme"),
		),
		Flip: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "flip board"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload engine"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
