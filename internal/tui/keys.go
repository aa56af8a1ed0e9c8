package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Next    key.Binding
	Prev    key.Binding
	Mute    key.Binding
	Hold    key.Binding
	Like    key.Binding
	Stories key.Binding

	StoryNext  key.Binding
	StoryPrev  key.Binding
	StoryPause key.Binding
	StoryClose key.Binding

	Help key.Binding
	Quit key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Next: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next reel"),
		),
		Prev: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "previous reel"),
		),
		Mute: key.NewBinding(
			key.WithKeys("m", " "),
			key.WithHelp("m/space", "tap: mute"),
		),
		Hold: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "hold/release"),
		),
		Like: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "double tap: like"),
		),
		Stories: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stories"),
		),
		StoryNext: key.NewBinding(
			key.WithKeys("right", "n"),
			key.WithHelp("→/n", "next story"),
		),
		StoryPrev: key.NewBinding(
			key.WithKeys("left", "b"),
			key.WithHelp("←/b", "previous story"),
		),
		StoryPause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p/space", "pause/resume"),
		),
		StoryClose: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close stories"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// feedHelp and storyHelp let the help bubble show the bindings of the
// active view only.
type feedHelp struct{ keys keyMap }

func (h feedHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.keys.Next, h.keys.Mute, h.keys.Like, h.keys.Stories, h.keys.Help, h.keys.Quit}
}

func (h feedHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{h.keys.Next, h.keys.Prev},
		{h.keys.Mute, h.keys.Hold, h.keys.Like},
		{h.keys.Stories, h.keys.Help, h.keys.Quit},
	}
}

type storyHelp struct{ keys keyMap }

func (h storyHelp) ShortHelp() []key.Binding {
	return []key.Binding{h.keys.StoryNext, h.keys.StoryPrev, h.keys.StoryPause, h.keys.Like, h.keys.StoryClose, h.keys.Quit}
}

func (h storyHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{h.keys.StoryNext, h.keys.StoryPrev},
		{h.keys.StoryPause, h.keys.Like, h.keys.StoryClose},
		{h.keys.Help, h.keys.Quit},
	}
}
