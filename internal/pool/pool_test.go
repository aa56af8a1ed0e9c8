package pool

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-player/internal/decoder"
	mock_decoder "github.com/orgball2608/moments-player/internal/decoder/mocks"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/eventloop"
	"github.com/orgball2608/moments-player/pkg/logger"
	"go.uber.org/mock/gomock"
)

func feed(n int) []domain.FeedItem {
	items := make([]domain.FeedItem, n)
	for i := range items {
		items[i] = domain.FeedItem{ID: fmt.Sprintf("item-%d", i), MediaURI: fmt.Sprintf("sim://%d", i), Position: i}
	}
	return items
}

func newTestPool(t *testing.T, factory decoder.Factory, n int) (*Pool, *eventloop.Loop) {
	t.Helper()
	loop := eventloop.New(clockwork.NewFakeClock(), logger.NewNop())
	return New(Opts{
		Factory: factory,
		Poster:  loop,
		Items:   feed(n),
		Logger:  logger.NewNop(),
	}), loop
}

// queueRunner holds submitted opens until the test runs them.
type queueRunner struct {
	tasks  []func()
	reject error
}

func (r *queueRunner) Submit(task func()) error {
	if r.reject != nil {
		return r.reject
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *queueRunner) runAll() {
	tasks := r.tasks
	r.tasks = nil
	for _, task := range tasks {
		task()
	}
}

func newRunnerPool(t *testing.T, factory decoder.Factory, runner Runner, n int) (*Pool, *eventloop.Loop) {
	t.Helper()
	loop := eventloop.New(clockwork.NewFakeClock(), logger.NewNop())
	return New(Opts{
		Factory: factory,
		Poster:  loop,
		Runner:  runner,
		Items:   feed(n),
		Logger:  logger.NewNop(),
	}), loop
}

func TestAcquireOutOfRange(t *testing.T) {
	ctrl := gomock.NewController(t)
	p, _ := newTestPool(t, mock_decoder.NewMockFactory(ctrl), 3)

	for _, index := range []int{-1, 3, 100} {
		if _, err := p.Acquire(context.Background(), index); !errors.Is(err, ErrIndexOutOfRange) {
			t.Fatalf("Acquire(%d) error = %v, want ErrIndexOutOfRange", index, err)
		}
	}
}

func TestAcquireOpensOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	handle := mock_decoder.NewMockHandle(ctrl)
	factory.EXPECT().Open(gomock.Any(), "sim://1", gomock.Any()).Return(handle, nil).Times(1)

	p, _ := newTestPool(t, factory, 3)
	first, err := p.Acquire(context.Background(), 1)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	second, _ := p.Acquire(context.Background(), 1)

	if first != second {
		t.Fatal("Acquire returned a different entry for the same index")
	}
	if first.Ready {
		t.Fatal("new entry must not be ready before the backend reports it")
	}
}

func TestOpenFailureLeavesEmptyEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	factory.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("no codec"))

	p, _ := newTestPool(t, factory, 1)
	e, err := p.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if e.HasHandle() {
		t.Fatal("entry should have no handle after a failed open")
	}

	e.Play(context.Background())
	if !e.Playing {
		t.Fatal("intended state should be recorded even without a handle")
	}
	if _, ok := e.Status(context.Background()); ok {
		t.Fatal("Status() ok without a handle")
	}
	p.Release(context.Background(), 0)
}

func TestReadinessIsPostedToLoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)

	var ready func()
	factory.EXPECT().Open(gomock.Any(), "sim://0", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, r func()) (decoder.Handle, error) {
			ready = r
			return mock_decoder.NewMockHandle(ctrl), nil
		})

	p, loop := newTestPool(t, factory, 1)
	var readyIndex = -1
	p.OnReady(func(i int) { readyIndex = i })

	e, _ := p.Acquire(context.Background(), 0)
	ready()
	if e.Ready {
		t.Fatal("readiness must not be applied off the loop")
	}

	loop.Flush()
	if !e.Ready || readyIndex != 0 {
		t.Fatalf("Ready = %v readyIndex = %d after Flush", e.Ready, readyIndex)
	}
}

func TestReadinessAfterReleaseIsIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	handle := mock_decoder.NewMockHandle(ctrl)
	handle.EXPECT().Close().Return(nil)

	var ready func()
	factory.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, r func()) (decoder.Handle, error) {
			ready = r
			return handle, nil
		})

	p, loop := newTestPool(t, factory, 1)
	called := false
	p.OnReady(func(int) { called = true })

	p.Acquire(context.Background(), 0)
	p.Release(context.Background(), 0)
	ready()
	loop.Flush()

	if called {
		t.Fatal("OnReady fired for a released entry")
	}
}

func TestReleasePausesPlayingHandle(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	handle := mock_decoder.NewMockHandle(ctrl)
	factory.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).Return(handle, nil)

	gomock.InOrder(
		handle.EXPECT().Play(gomock.Any()).Return(nil),
		handle.EXPECT().Pause(gomock.Any()).Return(nil),
		handle.EXPECT().Close().Return(nil),
	)

	p, _ := newTestPool(t, factory, 1)
	e, _ := p.Acquire(context.Background(), 0)
	e.Play(context.Background())

	p.Release(context.Background(), 0)
	p.Release(context.Background(), 0)

	if p.Len() != 0 {
		t.Fatalf("Len() = %d after release", p.Len())
	}
}

func TestFailedCallsRecordStateOptimistically(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	handle := mock_decoder.NewMockHandle(ctrl)
	factory.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).Return(handle, nil)

	handle.EXPECT().Play(gomock.Any()).Return(errors.New("device busy"))
	handle.EXPECT().SetMuted(gomock.Any(), true).DoAndReturn(func(context.Context, bool) error {
		panic("native crash")
	})
	handle.EXPECT().Status(gomock.Any()).Return(decoder.Status{}, errors.New("gone"))

	p, _ := newTestPool(t, factory, 1)
	e, _ := p.Acquire(context.Background(), 0)

	e.Play(context.Background())
	e.SetMuted(context.Background(), true)
	_, ok := e.Status(context.Background())

	if !e.Playing || !e.Muted {
		t.Fatalf("Playing = %v Muted = %v, want both recorded", e.Playing, e.Muted)
	}
	if ok {
		t.Fatal("Status() ok after a failed call")
	}
}

func TestRetainMovesWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	factory.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, func()) (decoder.Handle, error) {
			h := mock_decoder.NewMockHandle(ctrl)
			h.EXPECT().Close().Return(nil).AnyTimes()
			return h, nil
		}).Times(5)

	p, _ := newTestPool(t, factory, 10)
	ctx := context.Background()

	if added := p.Retain(ctx, 0, 2); len(added) != 3 {
		t.Fatalf("Retain(0,2) added %d entries, want 3", len(added))
	}

	added := p.Retain(ctx, 2, 4)
	if len(added) != 2 || added[0].Index != 3 || added[1].Index != 4 {
		t.Fatalf("Retain(2,4) added %v, want [3 4]", added)
	}

	var got []int
	p.ForEach(func(e *Entry) { got = append(got, e.Index) })
	if fmt.Sprint(got) != "[2 3 4]" {
		t.Fatalf("ForEach order = %v, want [2 3 4]", got)
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	factory.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, func()) (decoder.Handle, error) {
			h := mock_decoder.NewMockHandle(ctrl)
			h.EXPECT().Pause(gomock.Any()).Return(nil).AnyTimes()
			h.EXPECT().Play(gomock.Any()).Return(nil).AnyTimes()
			h.EXPECT().Close().Return(nil).Times(1)
			return h, nil
		}).Times(3)

	p, _ := newTestPool(t, factory, 3)
	ctx := context.Background()
	p.Retain(ctx, 0, 2)
	e, _ := p.Get(1)
	e.Play(ctx)

	p.Close(ctx)

	if p.Len() != 0 || len(p.Playing()) != 0 {
		t.Fatalf("Len() = %d Playing() = %v after Close", p.Len(), p.Playing())
	}
}

func TestRunnerOpensOffLoopAndReplaysIntent(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	handle := mock_decoder.NewMockHandle(ctrl)
	runner := &queueRunner{}
	p, loop := newRunnerPool(t, factory, runner, 2)
	ctx := context.Background()

	e, err := p.Acquire(ctx, 0)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !e.Opening() || e.HasHandle() {
		t.Fatalf("Opening = %v HasHandle = %v, want the open still pending", e.Opening(), e.HasHandle())
	}

	e.SetMuted(ctx, true)
	e.Play(ctx)

	factory.EXPECT().Open(gomock.Any(), "sim://0", gomock.Any()).Return(handle, nil)
	gomock.InOrder(
		handle.EXPECT().SetMuted(gomock.Any(), true).Return(nil),
		handle.EXPECT().Play(gomock.Any()).Return(nil),
	)

	runner.runAll()
	if e.HasHandle() {
		t.Fatal("handle attached off the loop")
	}
	loop.Flush()

	if e.Opening() || !e.HasHandle() {
		t.Fatalf("Opening = %v HasHandle = %v after Flush", e.Opening(), e.HasHandle())
	}
	if !e.Playing || !e.Muted {
		t.Fatalf("Playing = %v Muted = %v, want the recorded intent kept", e.Playing, e.Muted)
	}
}

func TestRunnerOpenFinishingAfterReleaseClosesHandle(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	handle := mock_decoder.NewMockHandle(ctrl)
	factory.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).Return(handle, nil)
	handle.EXPECT().Close().Return(nil).Times(1)

	runner := &queueRunner{}
	p, loop := newRunnerPool(t, factory, runner, 1)

	e, _ := p.Acquire(context.Background(), 0)
	e.Play(context.Background())
	p.Release(context.Background(), 0)

	runner.runAll()
	loop.Flush()

	if e.HasHandle() || p.Len() != 0 {
		t.Fatalf("HasHandle = %v Len = %d, want the late handle dropped", e.HasHandle(), p.Len())
	}
}

func TestRunnerOpenAfterOwnerCancelClosesInWorker(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	handle := mock_decoder.NewMockHandle(ctrl)
	factory.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).Return(handle, nil)
	handle.EXPECT().Close().Return(nil).Times(1)

	runner := &queueRunner{}
	p, loop := newRunnerPool(t, factory, runner, 1)

	ctx, cancel := context.WithCancel(context.Background())
	e, _ := p.Acquire(ctx, 0)
	cancel()

	runner.runAll()
	loop.Flush()

	if e.HasHandle() {
		t.Fatal("handle attached for a cancelled owner")
	}
}

func TestRunnerRejectLeavesEmptyEntry(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := &queueRunner{reject: errors.New("pool overload")}
	p, _ := newRunnerPool(t, mock_decoder.NewMockFactory(ctrl), runner, 1)

	e, err := p.Acquire(context.Background(), 0)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if e.Opening() || e.HasHandle() {
		t.Fatalf("Opening = %v HasHandle = %v after a rejected submit", e.Opening(), e.HasHandle())
	}
}
