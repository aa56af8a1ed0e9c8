// Package eventloop runs the playback engine on a single goroutine.
//
// Everything the engine does happens inside a Loop callback: host events are
// Post-ed onto it and timers are scheduled on its deadline queue. Because no
// two callbacks ever run at once, engine components keep their state without
// locks.
package eventloop

import (
	"container/heap"
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-player/pkg/logger"
)

const postedBuffer = 256

// Scheduler schedules callbacks on the loop.
type Scheduler interface {
	Every(interval time.Duration, fn func()) *Task
	After(delay time.Duration, fn func()) *Task
}

// Poster enqueues a callback from any goroutine.
type Poster interface {
	Post(fn func())
}

type Loop struct {
	clock  clockwork.Clock
	logger logger.Logger

	posted chan func()
	wake   chan struct{}

	mu    sync.Mutex
	queue taskQueue
	seq   uint64
	// now is the deadline of the task being run by RunDue; zero otherwise.
	now time.Time
}

var (
	_ Scheduler = (*Loop)(nil)
	_ Poster    = (*Loop)(nil)
)

func New(clock clockwork.Clock, log logger.Logger) *Loop {
	return &Loop{
		clock:  clock,
		logger: log.WithComponent("EventLoop"),
		posted: make(chan func(), postedBuffer),
		wake:   make(chan struct{}, 1),
	}
}

// Clock returns the time source the loop schedules against.
func (l *Loop) Clock() clockwork.Clock {
	return l.clock
}

func (l *Loop) Post(fn func()) {
	l.posted <- fn
}

// Every runs fn every interval, first at now+interval, until cancelled.
func (l *Loop) Every(interval time.Duration, fn func()) *Task {
	if interval <= 0 {
		interval = time.Millisecond
	}
	return l.schedule(interval, interval, fn)
}

// After runs fn once after delay unless cancelled first.
func (l *Loop) After(delay time.Duration, fn func()) *Task {
	return l.schedule(delay, 0, fn)
}

func (l *Loop) schedule(delay, interval time.Duration, fn func()) *Task {
	l.mu.Lock()
	l.seq++
	t := &Task{
		loop:     l,
		fn:       fn,
		interval: interval,
		deadline: l.nowLocked().Add(delay),
		seq:      l.seq,
		index:    -1,
	}
	heap.Push(&l.queue, t)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return t
}

func (l *Loop) cancel(t *Task) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t.cancelled = true
	if t.index >= 0 {
		heap.Remove(&l.queue, t.index)
	}
}

// nowLocked is the loop's notion of the current time. Inside a task callback
// it is the task's deadline, so work scheduled while catching up keeps its
// spacing relative to the tick that scheduled it.
func (l *Loop) nowLocked() time.Time {
	if !l.now.IsZero() {
		return l.now
	}
	return l.clock.Now()
}

// Pending reports how many tasks are still scheduled.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

// RunDue runs every task whose deadline is not after the clock's current
// time, earliest first, and returns how many callbacks ran. Repeating tasks
// that fell behind catch up one interval at a time.
func (l *Loop) RunDue() int {
	ran := 0
	for {
		t := l.popDue(l.clock.Now())
		if t == nil {
			return ran
		}
		l.safeRun(t.fn)
		ran++

		if t.interval > 0 {
			l.rearm(t)
		}
		l.setNow(time.Time{})
	}
}

func (l *Loop) popDue(now time.Time) *Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.queue.Len() == 0 || l.queue[0].deadline.After(now) {
		return nil
	}
	t := heap.Pop(&l.queue).(*Task)
	if t.interval == 0 {
		t.cancelled = true
	}
	l.now = t.deadline
	return t
}

func (l *Loop) rearm(t *Task) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// The callback may have cancelled its own task.
	if t.cancelled {
		return
	}
	t.deadline = t.deadline.Add(t.interval)
	l.seq++
	t.seq = l.seq
	heap.Push(&l.queue, t)
}

func (l *Loop) setNow(t time.Time) {
	l.mu.Lock()
	l.now = t
	l.mu.Unlock()
}

// Flush runs every posted callback currently queued, then every due task.
func (l *Loop) Flush() {
	for {
		select {
		case fn := <-l.posted:
			l.safeRun(fn)
		default:
			l.RunDue()
			return
		}
	}
}

// Run processes posted callbacks and due tasks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("Event loop started")
	defer l.logger.Info("Event loop stopped")

	for {
		l.RunDue()

		var timerC <-chan time.Time
		var timer clockwork.Timer
		if next, ok := l.nextDeadline(); ok {
			timer = l.clock.NewTimer(l.clock.Until(next))
			timerC = timer.Chan()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case fn := <-l.posted:
			l.safeRun(fn)
		case <-timerC:
		case <-l.wake:
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

func (l *Loop) nextDeadline() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.queue.Len() == 0 {
		return time.Time{}, false
	}
	return l.queue[0].deadline, true
}

func (l *Loop) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("Panic recovered in loop callback", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
