package tui

import (
	"context"
	"fmt"
	"math"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/eventloop"
	"github.com/orgball2608/moments-player/internal/repositories/feed"
	"github.com/orgball2608/moments-player/internal/repositories/story"
	"github.com/orgball2608/moments-player/internal/screen"
	"github.com/orgball2608/moments-player/pkg/config"
	"github.com/orgball2608/moments-player/pkg/logger"
	"go.uber.org/fx"
)

const (
	storyTapBack    = 0.25
	storyTapForward = 0.75
)

type Opts struct {
	fx.In

	Loop    *eventloop.Loop
	Screen  *screen.FeedScreen
	Feed    feed.Repository
	Stories story.Repository
	Config  *config.Config
	Logger  logger.Logger
}

// Host runs the terminal UI against a feed screen. Every Controller method
// posts its work to the event loop; engine callbacks reach the model through
// send.
type Host struct {
	loop      *eventloop.Loop
	screen    *screen.FeedScreen
	feedRepo  feed.Repository
	storyRepo story.Repository
	cfg       *config.Config
	logger    logger.Logger

	send    func(tea.Msg)
	program *tea.Program
}

var _ Controller = (*Host)(nil)

func NewHost(opts Opts) *Host {
	return &Host{
		loop:      opts.Loop,
		screen:    opts.Screen,
		feedRepo:  opts.Feed,
		storyRepo: opts.Stories,
		cfg:       opts.Config,
		logger:    opts.Logger.WithComponent("TerminalHost"),
		send:      func(tea.Msg) {},
	}
}

// Run loads the feed, mounts it and blocks until the user quits or ctx is
// done.
func (h *Host) Run(ctx context.Context) error {
	loadCtx, cancel := context.WithTimeout(ctx, loadTimeout)
	items, err := h.feedRepo.List(loadCtx, h.cfg.App.FeedLimit)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to load feed: %w", err)
	}

	model := NewModel(ModelOpts{
		Controller:  h,
		LoadStories: h.activeStories,
		Items:       items,
		Muted:       h.cfg.Player.StartMuted,
		StoryLength: h.storyLength(),
	})
	h.program = tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	h.send = h.program.Send

	h.loop.Post(func() { h.mount(items) })

	if _, err := h.program.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal ui failed: %w", err)
	}
	h.logger.Info("Terminal host exited")
	return nil
}

// Quit stops a running program; safe to call before Run.
func (h *Host) Quit() {
	if h.program != nil {
		h.program.Quit()
	}
}

func (h *Host) mount(items []domain.FeedItem) {
	h.screen.Mount(items)

	sync := h.screen.Sync()
	sync.OnIndexChange(func(index int) {
		h.send(feedIndexMsg{index: index})
	})
	sync.OnProgress(func(index int, ratio float64) {
		h.send(feedProgressMsg{index: index, ratio: ratio})
	})
	sync.OnMuteChange(func(muted bool) {
		h.send(muteMsg{muted: muted})
	})

	router := h.screen.Router()
	router.OnIndicator(func(visible, muted bool) {
		h.send(indicatorMsg{visible: visible, muted: muted})
	})
	router.OnLiked(func(itemID string, err error) {
		h.send(likedMsg{itemID: itemID, err: err})
	})
}

func (h *Host) activeStories(ctx context.Context) ([]domain.StoryItem, error) {
	return h.storyRepo.ListActive(ctx, h.cfg.Stories.TTL)
}

func (h *Host) storyLength() time.Duration {
	p := h.cfg.Player
	if p.TickIncrement <= 0 {
		return 0
	}
	return time.Duration(math.Round(float64(p.TickInterval) / p.TickIncrement))
}

func (h *Host) ScrollTo(index int) {
	h.loop.Post(func() {
		h.screen.ScrollTo(index)
	})
}

func (h *Host) SetFocused(focused bool) {
	h.loop.Post(func() {
		h.screen.SetFocused(focused)
	})
}

func (h *Host) ToggleMute() {
	h.loop.Post(func() {
		if r := h.screen.Router(); r != nil {
			r.FeedTap()
		}
	})
}

// ToggleHold stands in for press and release: terminals report no key-up.
// The synchronizer decides which one applies, and the model is told the
// outcome.
func (h *Host) ToggleHold() {
	h.loop.Post(func() {
		r, sync := h.screen.Router(), h.screen.Sync()
		if r == nil || sync == nil {
			return
		}
		if sync.Held() {
			r.FeedRelease()
		} else {
			r.FeedLongPress()
		}
		h.send(holdMsg{held: sync.Held()})
	})
}

func (h *Host) Like(itemID string) {
	h.loop.Post(func() {
		if r := h.screen.Router(); r != nil {
			r.DoubleTap(itemID)
		}
	})
}

func (h *Host) OpenStories(items []domain.StoryItem) {
	h.loop.Post(func() {
		session := h.screen.OpenStories(items, 0, func() {
			h.send(storyExitMsg{})
		})
		if session == nil {
			h.send(storyExitMsg{})
			return
		}
		if session.Closed() {
			return
		}

		seq := session.Sequencer()
		seq.OnIndexChange(func(index int, item domain.StoryItem) {
			h.send(storyIndexMsg{index: index, total: len(items), item: item})
		})
		seq.OnProgress(func(index int, progress float64) {
			h.send(storyProgressMsg{index: index, progress: progress})
		})

		// The session started before the observers were attached.
		snap := seq.Snapshot()
		h.send(storyIndexMsg{index: snap.CurrentIndex, total: snap.Total, item: snap.Item})
	})
}

func (h *Host) StoryTap(forward bool) {
	h.loop.Post(func() {
		r := h.screen.Router()
		if r == nil {
			return
		}
		x := storyTapBack
		if forward {
			x = storyTapForward
		}
		r.StoryTap(x, 1)
	})
}

func (h *Host) ToggleStoryPause() {
	h.loop.Post(func() {
		s := h.screen.Stories()
		r := h.screen.Router()
		if s == nil || r == nil {
			return
		}
		if s.Sequencer().State() == domain.StoryPaused {
			r.StoryRelease()
		} else {
			r.StoryLongPress()
		}
	})
}

func (h *Host) CloseStories() {
	h.loop.Post(func() {
		if s := h.screen.Stories(); s != nil {
			s.Exit()
		}
	})
}
