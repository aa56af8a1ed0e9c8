package tui

import "github.com/orgball2608/moments-player/internal/domain"

// Engine messages. The host sends them from the event loop goroutine.
type (
	feedIndexMsg struct {
		index int
	}

	feedProgressMsg struct {
		index int
		ratio float64
	}

	muteMsg struct {
		muted bool
	}

	holdMsg struct {
		held bool
	}

	indicatorMsg struct {
		visible bool
		muted   bool
	}

	likedMsg struct {
		itemID string
		err    error
	}

	storyIndexMsg struct {
		index int
		total int
		item  domain.StoryItem
	}

	storyProgressMsg struct {
		index    int
		progress float64
	}

	storyExitMsg struct{}
)

// Command results.
type (
	storiesLoadedMsg struct {
		items []domain.StoryItem
	}

	errMsg struct {
		err error
	}
)
