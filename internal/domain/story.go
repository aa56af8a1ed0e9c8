package domain

import "time"

// StoryItem is one timed segment of a story collection.
type StoryItem struct {
	ID        string
	OwnerID   string
	OwnerName string
	MediaURI  string
	Position  int
	PostedAt  time.Time
}

// StoryState is the lifecycle state of a story session.
type StoryState int

const (
	StoryIdle StoryState = iota
	StoryRunning
	StoryPaused
)

func (s StoryState) String() string {
	switch s {
	case StoryIdle:
		return "Idle"
	case StoryRunning:
		return "Running"
	case StoryPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// ProgressState is the countdown position of a story session. Progress is
// normalized to [0,1] for the item at CurrentIndex.
type ProgressState struct {
	CurrentIndex int
	Progress     float64
}
