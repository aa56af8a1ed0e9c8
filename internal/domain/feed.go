package domain

import "time"

// FeedItem is one entry of the vertical short-video feed. Counts are
// read-only to the playback engine.
type FeedItem struct {
	ID           string
	OwnerID      string
	OwnerName    string
	MediaURI     string
	Caption      string
	LikeCount    int
	CommentCount int
	Position     int
	PostedAt     time.Time
}

// SyncState is the feed screen's playback intent.
type SyncState struct {
	// CurrentIndex is meaningful only when HasCurrent is true.
	CurrentIndex int
	HasCurrent   bool
	Muted        bool
	Focused      bool
}

// Current returns the current index and whether one is set.
func (s SyncState) Current() (int, bool) {
	return s.CurrentIndex, s.HasCurrent
}
