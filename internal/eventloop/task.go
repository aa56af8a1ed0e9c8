package eventloop

import "time"

// Task is the cancellation token of a scheduled callback.
type Task struct {
	loop      *Loop
	fn        func()
	interval  time.Duration
	deadline  time.Time
	seq       uint64
	index     int
	cancelled bool
}

// Cancel unschedules the task. It is idempotent and safe on a nil Task; once
// it returns the callback will not run again.
func (t *Task) Cancel() {
	if t == nil {
		return
	}
	t.loop.cancel(t)
}

// Active reports whether the task can still fire.
func (t *Task) Active() bool {
	if t == nil {
		return false
	}
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	return !t.cancelled
}

// taskQueue is a min-heap on (deadline, seq).
type taskQueue []*Task

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].seq < q[j].seq
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q taskQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *taskQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
