// Package progress drives a normalized [0,1] countdown in fixed increments.
package progress

import (
	"math"
	"time"

	"github.com/orgball2608/moments-player/internal/eventloop"
)

const (
	DefaultInterval  = 100 * time.Millisecond
	DefaultIncrement = 0.01
)

// Timer owns at most one scheduled tick at a time.
type Timer struct {
	sched     eventloop.Scheduler
	interval  time.Duration
	increment float64

	task     *eventloop.Task
	progress float64
}

// New returns a Timer. Non-positive interval or increment fall back to the
// defaults (100 ticks over 10s).
func New(sched eventloop.Scheduler, interval time.Duration, increment float64) *Timer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if increment <= 0 {
		increment = DefaultIncrement
	}
	return &Timer{sched: sched, interval: interval, increment: increment}
}

// Start cancels any running countdown and begins a new one from initial.
// onTick receives every new value; when progress reaches 1 the timer stops
// itself, reports exactly 1.0 and calls onComplete once.
func (t *Timer) Start(initial float64, onTick func(float64), onComplete func()) {
	t.Cancel()
	t.progress = clamp(initial)

	var task *eventloop.Task
	task = t.sched.Every(t.interval, func() {
		next := round3(t.progress + t.increment)
		if next < 1 {
			t.progress = next
			if onTick != nil {
				onTick(next)
			}
			return
		}

		task.Cancel()
		if t.task == task {
			t.task = nil
		}
		t.progress = 1
		if onTick != nil {
			onTick(1)
		}
		if onComplete != nil {
			onComplete()
		}
	})
	t.task = task
}

// Cancel stops the countdown without touching the stored progress.
func (t *Timer) Cancel() {
	t.task.Cancel()
	t.task = nil
}

func (t *Timer) Running() bool {
	return t.task.Active()
}

func (t *Timer) Progress() float64 {
	return t.progress
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
