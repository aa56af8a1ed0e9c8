// Package story sequences a timed, auto-advancing list of story items.
package story

import (
	"time"

	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/eventloop"
	"github.com/orgball2608/moments-player/internal/progress"
	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/samber/lo"
)

type Config struct {
	TickInterval  time.Duration
	TickIncrement float64
}

// Snapshot is a read-only view of a session for rendering.
type Snapshot struct {
	State        domain.StoryState
	CurrentIndex int
	Progress     float64
	Item         domain.StoryItem
	Total        int
}

// Sequencer is the Idle -> Running <-> Paused state machine of one story
// session. It must only be used from the event loop goroutine.
type Sequencer struct {
	items  []domain.StoryItem
	timer  *progress.Timer
	logger logger.Logger

	state    domain.StoryState
	progress domain.ProgressState
	// done latches once the session exited or was closed.
	done bool

	onProgress    func(index int, progress float64)
	onIndexChange func(index int, item domain.StoryItem)
	onExit        func()
}

func New(sched eventloop.Scheduler, items []domain.StoryItem, startIndex int, cfg Config, log logger.Logger) *Sequencer {
	s := &Sequencer{
		items:  items,
		timer:  progress.New(sched, cfg.TickInterval, cfg.TickIncrement),
		logger: log.WithComponent("StorySequencer"),
	}
	if len(items) > 0 {
		s.progress.CurrentIndex = lo.Clamp(startIndex, 0, len(items)-1)
	}
	return s
}

func (s *Sequencer) OnProgress(fn func(index int, progress float64)) {
	s.onProgress = fn
}

func (s *Sequencer) OnIndexChange(fn func(index int, item domain.StoryItem)) {
	s.onIndexChange = fn
}

// OnExit registers the host navigation hook; it fires at most once.
func (s *Sequencer) OnExit(fn func()) {
	s.onExit = fn
}

// Start moves Idle -> Running. An empty collection exits immediately.
func (s *Sequencer) Start() {
	if s.done || s.state != domain.StoryIdle {
		return
	}
	if len(s.items) == 0 {
		s.exit()
		return
	}
	s.logger.Debug("Story session started", "index", s.progress.CurrentIndex, "total", len(s.items))
	s.goTo(s.progress.CurrentIndex)
}

// Advance moves to the next item, or exits when already on the last one.
func (s *Sequencer) Advance() {
	if !s.active() {
		return
	}
	if s.progress.CurrentIndex < len(s.items)-1 {
		s.goTo(s.progress.CurrentIndex + 1)
		return
	}
	s.exit()
}

// Retreat moves to the previous item. On the first item it restarts it.
func (s *Sequencer) Retreat() {
	if !s.active() {
		return
	}
	s.goTo(max(s.progress.CurrentIndex-1, 0))
}

// Pause stops the countdown and keeps the current progress.
func (s *Sequencer) Pause() {
	if s.done || s.state != domain.StoryRunning {
		return
	}
	s.timer.Cancel()
	s.state = domain.StoryPaused
}

// Resume continues the countdown from the stored progress.
func (s *Sequencer) Resume() {
	if s.done || s.state != domain.StoryPaused {
		return
	}
	s.state = domain.StoryRunning
	s.startTimer()
}

// Close ends the session without signalling exit.
func (s *Sequencer) Close() {
	s.timer.Cancel()
	s.state = domain.StoryIdle
	s.done = true
}

func (s *Sequencer) Snapshot() Snapshot {
	snap := Snapshot{
		State:        s.state,
		CurrentIndex: s.progress.CurrentIndex,
		Progress:     s.progress.Progress,
		Total:        len(s.items),
	}
	if len(s.items) > 0 {
		snap.Item = s.items[s.progress.CurrentIndex]
	}
	return snap
}

func (s *Sequencer) State() domain.StoryState {
	return s.state
}

// TimerRunning reports whether a countdown tick is scheduled.
func (s *Sequencer) TimerRunning() bool {
	return s.timer.Running()
}

func (s *Sequencer) active() bool {
	return !s.done && s.state != domain.StoryIdle
}

// goTo is the only path that changes the index: reset progress, then
// restart the timer.
func (s *Sequencer) goTo(index int) {
	s.progress.CurrentIndex = index
	s.progress.Progress = 0
	s.state = domain.StoryRunning

	if s.onIndexChange != nil {
		s.onIndexChange(index, s.items[index])
	}
	s.startTimer()
}

func (s *Sequencer) startTimer() {
	s.timer.Start(s.progress.Progress, s.tick, s.Advance)
}

func (s *Sequencer) tick(p float64) {
	s.progress.Progress = p
	if s.onProgress != nil {
		s.onProgress(s.progress.CurrentIndex, p)
	}
}

func (s *Sequencer) exit() {
	s.timer.Cancel()
	s.state = domain.StoryIdle
	if s.done {
		return
	}
	s.done = true

	s.logger.Debug("Story session exited", "index", s.progress.CurrentIndex)
	if s.onExit != nil {
		s.onExit()
	}
}
