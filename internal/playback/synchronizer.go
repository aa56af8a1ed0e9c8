// Package playback keeps at most one pooled feed handle playing, in step with
// the visible index, the screen focus and the mute flag.
package playback

import (
	"context"
	"math"
	"time"

	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/eventloop"
	"github.com/orgball2608/moments-player/internal/pool"
	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/samber/lo"
)

const DefaultPollInterval = 100 * time.Millisecond

type Opts struct {
	Scheduler    eventloop.Scheduler
	Pool         *pool.Pool
	PollInterval time.Duration
	Muted        bool
	Logger       logger.Logger
}

// Synchronizer owns the SyncState and the pool of one feed screen. All
// methods run on the event loop.
type Synchronizer struct {
	ctx    context.Context
	cancel context.CancelFunc

	sched        eventloop.Scheduler
	pool         *pool.Pool
	pollInterval time.Duration
	logger       logger.Logger

	state  domain.SyncState
	closed bool

	poll *eventloop.Task
	// pollIndex is the index the running poll reports for.
	pollIndex int

	held      bool
	heldIndex int

	onProgress    func(index int, ratio float64)
	onMuteChange  func(muted bool)
	onIndexChange func(index int)
}

func New(opts Opts) *Synchronizer {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Synchronizer{
		ctx:          ctx,
		cancel:       cancel,
		sched:        opts.Scheduler,
		pool:         opts.Pool,
		pollInterval: interval,
		logger:       opts.Logger.WithComponent("PlaybackSynchronizer"),
		state:        domain.SyncState{Muted: opts.Muted, Focused: true},
	}
	opts.Pool.OnReady(s.onReady)
	return s
}

func (s *Synchronizer) OnProgress(fn func(index int, ratio float64)) {
	s.onProgress = fn
}

func (s *Synchronizer) OnMuteChange(fn func(muted bool)) {
	s.onMuteChange = fn
}

func (s *Synchronizer) OnIndexChange(fn func(index int)) {
	s.onIndexChange = fn
}

func (s *Synchronizer) State() domain.SyncState {
	return s.state
}

// Polling reports whether a status poll is scheduled.
func (s *Synchronizer) Polling() bool {
	return s.poll.Active()
}

// OnScroll maps a settled scroll offset onto the visible index.
func (s *Synchronizer) OnScroll(offset, itemExtent float64) {
	if itemExtent <= 0 || math.IsNaN(offset) {
		return
	}
	s.SetVisibleIndex(int(math.Round(offset / itemExtent)))
}

// SetVisibleIndex pauses the neighbours and any stray player, then plays
// index if the screen is focused.
func (s *Synchronizer) SetVisibleIndex(index int) {
	n := len(s.pool.Items())
	if s.closed || n == 0 {
		return
	}
	index = lo.Clamp(index, 0, n-1)
	changed := !s.state.HasCurrent || s.state.CurrentIndex != index

	s.pauseAt(index - 1)
	s.pauseAt(index + 1)
	s.pauseOthers(index)

	if changed && s.held {
		s.held = false
	}

	e, ok := s.acquire(index)
	if ok && s.state.Focused && !s.held {
		e.Play(s.ctx)
	}

	s.state.CurrentIndex = index
	s.state.HasCurrent = true
	s.startPolling(index)

	if changed {
		s.logger.Debug("Visible index changed", "index", index)
		if s.onIndexChange != nil {
			s.onIndexChange(index)
		}
	}
}

// SetFocused reacts to the host screen gaining or losing focus.
func (s *Synchronizer) SetFocused(focused bool) {
	if s.closed {
		return
	}
	s.state.Focused = focused

	if !focused {
		if s.state.HasCurrent {
			s.pauseAt(s.state.CurrentIndex)
		}
		s.pool.ForEach(func(e *pool.Entry) { e.Pause(s.ctx) })
		return
	}

	if !s.state.HasCurrent || s.held {
		return
	}
	s.pauseOthers(s.state.CurrentIndex)
	if e, ok := s.acquire(s.state.CurrentIndex); ok {
		e.Play(s.ctx)
	}
}

// SetMuted fans the mute flag out to every pooled handle.
func (s *Synchronizer) SetMuted(muted bool) {
	if s.closed {
		return
	}
	s.state.Muted = muted
	s.pool.ForEach(func(e *pool.Entry) { e.SetMuted(s.ctx, muted) })

	if s.onMuteChange != nil {
		s.onMuteChange(muted)
	}
}

// ToggleMute flips the mute flag and returns the new value.
func (s *Synchronizer) ToggleMute() bool {
	s.SetMuted(!s.state.Muted)
	return s.state.Muted
}

// OnWindowChange follows the host list's rendered window.
func (s *Synchronizer) OnWindowChange(first, last int) {
	if s.closed {
		return
	}
	for _, e := range s.pool.Retain(s.ctx, first, last) {
		e.SetMuted(s.ctx, s.state.Muted)
	}

	if s.state.HasCurrent && s.pollIndex == s.state.CurrentIndex {
		if _, ok := s.pool.Get(s.state.CurrentIndex); !ok {
			s.stopPolling()
		}
	}
}

// Held reports whether a long press is pausing the current handle.
func (s *Synchronizer) Held() bool {
	return s.held
}

// BeginHold pauses the current handle for the length of a long press.
func (s *Synchronizer) BeginHold() {
	if s.closed || !s.state.HasCurrent || s.held {
		return
	}
	s.held = true
	s.heldIndex = s.state.CurrentIndex
	s.pauseAt(s.state.CurrentIndex)
}

// EndHold resumes the held handle if it is still current and focused.
func (s *Synchronizer) EndHold() {
	if s.closed || !s.held {
		return
	}
	s.held = false

	if !s.state.HasCurrent || s.state.CurrentIndex != s.heldIndex || !s.state.Focused {
		return
	}
	s.pauseOthers(s.heldIndex)
	if e, ok := s.pool.Get(s.heldIndex); ok {
		e.Play(s.ctx)
	}
}

// Close stops polling and pauses and releases every handle.
func (s *Synchronizer) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.stopPolling()
	s.pool.Close(s.ctx)
	s.cancel()
}

func (s *Synchronizer) acquire(index int) (*pool.Entry, bool) {
	if e, ok := s.pool.Get(index); ok {
		return e, true
	}
	e, err := s.pool.Acquire(s.ctx, index)
	if err != nil {
		s.logger.Warn("Failed to acquire handle", "index", index, "error", err)
		return nil, false
	}
	e.SetMuted(s.ctx, s.state.Muted)
	return e, true
}

func (s *Synchronizer) pauseAt(index int) {
	if e, ok := s.pool.Get(index); ok {
		e.Pause(s.ctx)
	}
}

func (s *Synchronizer) pauseOthers(keep int) {
	s.pool.ForEach(func(e *pool.Entry) {
		if e.Index != keep && e.Playing {
			e.Pause(s.ctx)
		}
	})
}

// onReady reapplies intent for backends that drop calls made before load.
func (s *Synchronizer) onReady(index int) {
	if s.closed {
		return
	}
	e, ok := s.pool.Get(index)
	if !ok {
		return
	}
	e.SetMuted(s.ctx, s.state.Muted)
	if s.state.HasCurrent && s.state.CurrentIndex == index && s.state.Focused && !s.held {
		s.pauseOthers(index)
		e.Play(s.ctx)
	}
}

func (s *Synchronizer) startPolling(index int) {
	if s.poll.Active() && s.pollIndex == index {
		return
	}
	s.stopPolling()
	s.pollIndex = index
	s.poll = s.sched.Every(s.pollInterval, func() { s.pollStatus(index) })
}

func (s *Synchronizer) stopPolling() {
	s.poll.Cancel()
	s.poll = nil
}

func (s *Synchronizer) pollStatus(index int) {
	e, ok := s.pool.Get(index)
	if !ok {
		return
	}
	st, ok := e.Status(s.ctx)
	if !ok {
		return
	}
	ratio, ok := st.Ratio()
	if !ok {
		return
	}
	if s.onProgress != nil {
		s.onProgress(index, ratio)
	}
}
