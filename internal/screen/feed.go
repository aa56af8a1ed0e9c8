package screen

import (
	"context"
	"math"

	"github.com/google/uuid"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/gesture"
	"github.com/orgball2608/moments-player/internal/playback"
	"github.com/orgball2608/moments-player/internal/pool"
	"github.com/orgball2608/moments-player/pkg/logger"
)

// FeedScreen is one mounted vertical feed. Mount and Unmount run on the loop.
type FeedScreen struct {
	deps   Deps
	logger logger.Logger

	id      string
	items   []domain.FeedItem
	pool    *pool.Pool
	sync    *playback.Synchronizer
	router  *gesture.Router
	stories *StorySession
	// hostFocused is the last focus signal from the host, kept while a
	// story session overrides it.
	hostFocused bool
}

func NewFeedScreen(deps Deps) *FeedScreen {
	return &FeedScreen{
		deps:        deps,
		logger:      deps.Logger.WithComponent("FeedScreen"),
		hostFocused: true,
	}
}

func (f *FeedScreen) Mounted() bool {
	return f.sync != nil
}

func (f *FeedScreen) ID() string {
	return f.id
}

func (f *FeedScreen) Items() []domain.FeedItem {
	return f.items
}

func (f *FeedScreen) Sync() *playback.Synchronizer {
	return f.sync
}

func (f *FeedScreen) Router() *gesture.Router {
	return f.router
}

func (f *FeedScreen) Pool() *pool.Pool {
	return f.pool
}

// Stories is the open story session, if any.
func (f *FeedScreen) Stories() *StorySession {
	return f.stories
}

// Mount builds a fresh pool, synchronizer and router for items, renders the
// first window and makes index 0 current.
func (f *FeedScreen) Mount(items []domain.FeedItem) {
	if f.Mounted() {
		f.Unmount()
	}

	cfg := f.deps.Config
	f.id = uuid.NewString()
	f.items = items

	f.pool = pool.New(pool.Opts{
		Factory:   f.deps.Factory,
		Poster:    f.deps.Loop,
		Runner:    f.deps.Runner,
		Items:     items,
		OpTimeout: cfg.Player.OpTimeout,
		Logger:    f.deps.Logger,
	})
	f.sync = playback.New(playback.Opts{
		Scheduler:    f.deps.Loop,
		Pool:         f.pool,
		PollInterval: cfg.Player.PollInterval,
		Muted:        cfg.Player.StartMuted,
		Logger:       f.deps.Logger,
	})
	f.router = gesture.New(gesture.Opts{
		Loop:            f.deps.Loop,
		Sync:            f.sync,
		Likes:           f.deps.Likes,
		Limiter:         f.deps.Limiter,
		Retry:           f.deps.likeRetry(),
		Workers:         cfg.Likes.Workers,
		IndicatorWindow: cfg.Player.IndicatorWindow,
		UserID:          cfg.App.UserID,
		Logger:          f.deps.Logger,
	})

	f.logger.Info("Feed screen mounted", "session_id", f.id, "items", len(items))
	if !f.hostFocused {
		f.sync.SetFocused(false)
	}
	if len(items) == 0 {
		return
	}
	f.sync.OnWindowChange(f.window(0))
	f.sync.SetVisibleIndex(0)
}

// ScrollSettled moves the rendered window to follow the settled offset, then
// reports the settle to the router.
func (f *FeedScreen) ScrollSettled(offset, itemExtent float64) {
	if !f.Mounted() || itemExtent <= 0 {
		return
	}
	f.sync.OnWindowChange(f.window(int(math.Round(offset / itemExtent))))
	f.router.FeedScrollSettle(offset, itemExtent)
}

// ScrollTo is ScrollSettled for hosts that scroll by whole items.
func (f *FeedScreen) ScrollTo(index int) {
	f.ScrollSettled(float64(index), 1)
}

// SetFocused forwards the host focus signal unless a story session covers
// the feed.
func (f *FeedScreen) SetFocused(focused bool) {
	f.hostFocused = focused
	if !f.Mounted() {
		return
	}
	if f.stories != nil && focused {
		return
	}
	f.sync.SetFocused(focused)
}

// HostFocused is the last focus signal the host reported.
func (f *FeedScreen) HostFocused() bool {
	return f.hostFocused
}

// OpenStories covers the feed with a story session. The feed loses focus
// until the session ends, then takes the host's focus signal back.
func (f *FeedScreen) OpenStories(items []domain.StoryItem, start int, onExit func()) *StorySession {
	if !f.Mounted() {
		return nil
	}
	if f.stories != nil {
		f.stories.Exit()
	}

	f.sync.SetFocused(false)
	session := OpenStorySession(f.deps, f.router, items, start, func() {
		f.stories = nil
		if f.Mounted() {
			f.sync.SetFocused(f.hostFocused)
		}
		if onExit != nil {
			onExit()
		}
	})
	// An empty collection exits during open.
	if !session.Closed() {
		f.stories = session
	}
	return session
}

// Unmount closes the story session, the router and the synchronizer in that
// order; every handle ends paused and released.
func (f *FeedScreen) Unmount() {
	if !f.Mounted() {
		return
	}
	if f.stories != nil {
		f.stories.close()
		f.stories = nil
	}

	f.router.Close()
	f.sync.Close()
	f.logger.Info("Feed screen unmounted", "session_id", f.id)

	f.router = nil
	f.sync = nil
	f.pool = nil
}

func (f *FeedScreen) window(center int) (int, int) {
	radius := max(f.deps.Config.Player.WindowRadius, 0)
	return center - radius, center + radius
}

// Close lets fx stop hooks unmount from outside the loop.
func (f *FeedScreen) Close(ctx context.Context) error {
	done := make(chan struct{})
	f.deps.Loop.Post(func() {
		f.Unmount()
		close(done)
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
