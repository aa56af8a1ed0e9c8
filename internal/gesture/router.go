// Package gesture turns raw host gestures into engine actions.
package gesture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/eventloop"
	"github.com/orgball2608/moments-player/internal/playback"
	"github.com/orgball2608/moments-player/internal/ratelimit"
	"github.com/orgball2608/moments-player/internal/repositories/like"
	"github.com/orgball2608/moments-player/internal/story"
	apperrors "github.com/orgball2608/moments-player/pkg/errors"
	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/orgball2608/moments-player/pkg/retry"
	"github.com/orgball2608/moments-player/pkg/workers"
	"github.com/panjf2000/ants/v2"
)

const (
	DefaultIndicatorWindow = time.Second
	DefaultLikeWorkers     = 4
)

type Opts struct {
	Loop            *eventloop.Loop
	Sync            *playback.Synchronizer
	Likes           like.Repository
	Limiter         ratelimit.Limiter
	Retry           retry.Config
	Workers         int
	IndicatorWindow time.Duration
	UserID          string
	Logger          logger.Logger
}

// Router is used from the event loop; only like requests leave it.
type Router struct {
	loop            *eventloop.Loop
	clock           clockwork.Clock
	sync            *playback.Synchronizer
	likes           like.Repository
	limiter         ratelimit.Limiter
	retry           retry.Config
	indicatorWindow time.Duration
	userID          string
	logger          logger.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	workers *ants.Pool
	likeWG  sync.WaitGroup

	story *story.Sequencer

	indicator        *eventloop.Task
	indicatorVisible bool
	closed           bool

	onIndicator func(visible, muted bool)
	onLiked     func(itemID string, err error)
}

func New(opts Opts) *Router {
	window := opts.IndicatorWindow
	if window <= 0 {
		window = DefaultIndicatorWindow
	}
	size := opts.Workers
	if size <= 0 {
		size = DefaultLikeWorkers
	}
	log := opts.Logger.WithComponent("GestureRouter")
	likeWorkers, err := workers.New(size, "LikeWorkers", opts.Logger)
	if err != nil {
		log.Error("Like requests disabled", "error", err)
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Router{
		loop:            opts.Loop,
		clock:           opts.Loop.Clock(),
		sync:            opts.Sync,
		likes:           opts.Likes,
		limiter:         opts.Limiter,
		retry:           opts.Retry,
		indicatorWindow: window,
		userID:          opts.UserID,
		logger:          log,
		ctx:             ctx,
		cancel:          cancel,
		workers:         likeWorkers,
	}
}

// OnIndicator is told when the mute indicator appears or hides.
func (r *Router) OnIndicator(fn func(visible, muted bool)) {
	r.onIndicator = fn
}

// OnLiked receives the outcome of every like request, on the loop.
func (r *Router) OnLiked(fn func(itemID string, err error)) {
	r.onLiked = fn
}

// AttachStory routes story-surface gestures to seq. Nil detaches.
func (r *Router) AttachStory(seq *story.Sequencer) {
	r.story = seq
}

func (r *Router) IndicatorVisible() bool {
	return r.indicatorVisible
}

// FeedTap toggles mute and flashes the indicator.
func (r *Router) FeedTap() {
	if r.closed || r.sync == nil {
		return
	}
	muted := r.sync.ToggleMute()
	r.showIndicator(muted)
}

func (r *Router) FeedLongPress() {
	if r.closed || r.sync == nil {
		return
	}
	r.sync.BeginHold()
}

func (r *Router) FeedRelease() {
	if r.closed || r.sync == nil {
		return
	}
	r.sync.EndHold()
}

// FeedScrollSettle reports where the list stopped after momentum.
func (r *Router) FeedScrollSettle(offset, itemExtent float64) {
	if r.closed || r.sync == nil {
		return
	}
	r.sync.OnScroll(offset, itemExtent)
}

func (r *Router) StoryLongPress() {
	if r.closed || r.story == nil {
		return
	}
	r.story.Pause()
}

func (r *Router) StoryRelease() {
	if r.closed || r.story == nil {
		return
	}
	r.story.Resume()
}

// StoryTap retreats on the left half of the surface and advances on the right.
func (r *Router) StoryTap(x, width float64) {
	if r.closed || r.story == nil || width <= 0 {
		return
	}
	if x < width/2 {
		r.story.Retreat()
		return
	}
	r.story.Advance()
}

// DoubleTap likes itemID on a like worker; playback is untouched. A full
// worker pool rejects the like instead of queueing it.
func (r *Router) DoubleTap(itemID string) {
	if r.closed || r.likes == nil {
		return
	}
	if r.workers == nil {
		r.reportLike(itemID, apperrors.WrapWithCode(ants.ErrPoolClosed, apperrors.CodeLike, fmt.Sprintf("like %s", itemID)))
		return
	}

	r.likeWG.Add(1)
	err := r.workers.Submit(func() {
		defer r.likeWG.Done()

		err := r.like(r.ctx, itemID)
		if err != nil {
			r.logger.Warn("Like failed", "item_id", itemID, "user_id", r.userID, "error", err)
		}
		if r.ctx.Err() != nil {
			return
		}
		r.loop.Post(func() { r.reportLike(itemID, err) })
	})
	if err != nil {
		r.likeWG.Done()
		r.logger.Warn("Like rejected", "item_id", itemID, "error", err)
		r.reportLike(itemID, apperrors.WrapWithCode(err, apperrors.CodeLike, fmt.Sprintf("like %s", itemID)))
	}
}

func (r *Router) reportLike(itemID string, err error) {
	if !r.closed && r.onLiked != nil {
		r.onLiked(itemID, err)
	}
}

func (r *Router) like(ctx context.Context, itemID string) error {
	if r.limiter != nil && !r.limiter.Allow(r.userID) {
		return apperrors.WrapWithCode(apperrors.ErrRateLimited, apperrors.CodeLike, fmt.Sprintf("like %s", itemID))
	}

	l := domain.Like{ItemID: itemID, UserID: r.userID, CreatedAt: r.clock.Now()}
	err := retry.Do(ctx, r.logger, "like", func() error {
		err := r.likes.Create(ctx, l)
		if errors.Is(err, like.ErrAlreadyExists) {
			return nil
		}
		return err
	}, r.retry)

	return apperrors.WrapWithCode(err, apperrors.CodeLike, fmt.Sprintf("like %s", itemID))
}

// Wait blocks until in-flight like requests return. Not for use on the loop.
func (r *Router) Wait() {
	r.likeWG.Wait()
}

// Close cancels the indicator timer and any outstanding likes.
func (r *Router) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.indicator.Cancel()
	r.indicator = nil
	r.indicatorVisible = false
	r.story = nil
	r.cancel()
	if r.workers != nil {
		r.workers.Release()
	}
}

func (r *Router) showIndicator(muted bool) {
	r.indicator.Cancel()

	r.indicatorVisible = true
	if r.onIndicator != nil {
		r.onIndicator(true, muted)
	}

	r.indicator = r.loop.After(r.indicatorWindow, func() {
		r.indicator = nil
		r.indicatorVisible = false
		if r.onIndicator != nil {
			r.onIndicator(false, muted)
		}
	})
}
