package playback

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-player/internal/decoder"
	mock_decoder "github.com/orgball2608/moments-player/internal/decoder/mocks"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/eventloop"
	"github.com/orgball2608/moments-player/internal/pool"
	"github.com/orgball2608/moments-player/pkg/logger"
	"go.uber.org/mock/gomock"
)

// fakeHandle reports exactly what the engine last asked of it.
type fakeHandle struct {
	playing bool
	muted   bool
	closed  bool
	status  decoder.Status
	plays   int
}

func (h *fakeHandle) Play(context.Context) error {
	h.playing = true
	h.plays++
	return nil
}

func (h *fakeHandle) Pause(context.Context) error {
	h.playing = false
	return nil
}

func (h *fakeHandle) SetMuted(_ context.Context, muted bool) error {
	h.muted = muted
	return nil
}

func (h *fakeHandle) Status(context.Context) (decoder.Status, error) {
	return h.status, nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

type fakeFactory struct {
	handles map[string]*fakeHandle
	ready   map[string]func()
}

func (f *fakeFactory) Open(_ context.Context, uri string, ready func()) (decoder.Handle, error) {
	h := &fakeHandle{}
	f.handles[uri] = h
	f.ready[uri] = ready
	return h, nil
}

func (f *fakeFactory) handle(index int) *fakeHandle {
	return f.handles[fmt.Sprintf("sim://%d", index)]
}

func (f *fakeFactory) playing() []string {
	var out []string
	for uri, h := range f.handles {
		if h.playing && !h.closed {
			out = append(out, uri)
		}
	}
	return out
}

type harness struct {
	sync    *Synchronizer
	pool    *pool.Pool
	factory *fakeFactory
	loop    *eventloop.Loop
	clock   *clockwork.FakeClock
}

func feed(n int) []domain.FeedItem {
	items := make([]domain.FeedItem, n)
	for i := range items {
		items[i] = domain.FeedItem{ID: fmt.Sprintf("item-%d", i), MediaURI: fmt.Sprintf("sim://%d", i)}
	}
	return items
}

func newHarnessWithFactory(t *testing.T, factory decoder.Factory, n int) (*Synchronizer, *pool.Pool, *eventloop.Loop, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	loop := eventloop.New(clock, logger.NewNop())
	p := pool.New(pool.Opts{Factory: factory, Poster: loop, Items: feed(n), Logger: logger.NewNop()})
	s := New(Opts{Scheduler: loop, Pool: p, Logger: logger.NewNop()})
	return s, p, loop, clock
}

func newHarness(t *testing.T, n int) *harness {
	t.Helper()
	f := &fakeFactory{handles: map[string]*fakeHandle{}, ready: map[string]func(){}}
	s, p, loop, clock := newHarnessWithFactory(t, f, n)
	return &harness{sync: s, pool: p, factory: f, loop: loop, clock: clock}
}

func (h *harness) assertExclusive(t *testing.T, step string) {
	t.Helper()
	if got := h.pool.Playing(); len(got) > 1 {
		t.Fatalf("%s: pool records %v as playing", step, got)
	}
	if got := h.factory.playing(); len(got) > 1 {
		t.Fatalf("%s: handles %v are all playing", step, got)
	}
}

func TestMutualExclusionUnderRandomTriggers(t *testing.T) {
	h := newHarness(t, 12)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		var step string
		switch rng.Intn(6) {
		case 0, 1:
			idx := rng.Intn(12)
			step = fmt.Sprintf("SetVisibleIndex(%d)", idx)
			h.sync.SetVisibleIndex(idx)
		case 2:
			focused := rng.Intn(2) == 0
			step = fmt.Sprintf("SetFocused(%v)", focused)
			h.sync.SetFocused(focused)
		case 3:
			step = "ToggleMute"
			h.sync.ToggleMute()
		case 4:
			first := rng.Intn(12)
			step = fmt.Sprintf("OnWindowChange(%d,%d)", first, first+2)
			h.sync.OnWindowChange(first, first+2)
		case 5:
			if rng.Intn(2) == 0 {
				step = "BeginHold"
				h.sync.BeginHold()
			} else {
				step = "EndHold"
				h.sync.EndHold()
			}
		}
		h.assertExclusive(t, step)
	}
}

func TestVisibleIndexPlaysOnlyCurrent(t *testing.T) {
	h := newHarness(t, 5)
	h.sync.OnWindowChange(0, 4)

	h.sync.SetVisibleIndex(1)
	h.sync.SetVisibleIndex(3)

	if !h.factory.handle(3).playing {
		t.Fatal("current handle is not playing")
	}
	if h.factory.handle(1).playing {
		t.Fatal("previous handle still playing after a jump")
	}
	st := h.sync.State()
	if idx, ok := st.Current(); !ok || idx != 3 {
		t.Fatalf("current = (%d, %v), want (3, true)", idx, ok)
	}
}

func TestOnScrollRoundsAndClamps(t *testing.T) {
	tests := []struct {
		offset, extent float64
		want           int
		wantSet        bool
	}{
		{0, 800, 0, true},
		{1150, 800, 1, true},
		{1250, 800, 2, true},
		{99999, 800, 4, true},
		{-400, 800, 0, true},
		{100, 0, 0, false},
		{100, -5, 0, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/%v", tt.offset, tt.extent), func(t *testing.T) {
			h := newHarness(t, 5)
			h.sync.OnScroll(tt.offset, tt.extent)

			idx, ok := h.sync.State().Current()
			if ok != tt.wantSet || (ok && idx != tt.want) {
				t.Fatalf("current = (%d, %v), want (%d, %v)", idx, ok, tt.want, tt.wantSet)
			}
		})
	}
}

func TestMuteFanOutReachesEveryPooledHandle(t *testing.T) {
	h := newHarness(t, 6)
	ctx := context.Background()
	for _, i := range []int{0, 2, 5} {
		if _, err := h.pool.Acquire(ctx, i); err != nil {
			t.Fatalf("Acquire(%d) error = %v", i, err)
		}
	}
	h.sync.SetVisibleIndex(2)

	h.sync.ToggleMute()

	for _, i := range []int{0, 2, 5} {
		if !h.factory.handle(i).muted {
			t.Fatalf("handle %d not muted after toggle", i)
		}
		e, _ := h.pool.Get(i)
		if !e.Muted {
			t.Fatalf("entry %d does not record muted", i)
		}
	}
	if got := h.pool.Playing(); len(got) != 1 || got[0] != 2 {
		t.Fatalf("Playing() = %v, want [2]", got)
	}
}

func TestNewHandlesInheritMute(t *testing.T) {
	h := newHarness(t, 6)
	h.sync.SetMuted(true)

	h.sync.OnWindowChange(0, 2)
	h.sync.SetVisibleIndex(4)

	for _, i := range []int{0, 1, 2, 4} {
		if !h.factory.handle(i).muted {
			t.Fatalf("handle %d opened unmuted", i)
		}
	}
}

func TestFocusLossPausesAllAndRegainPlaysCurrent(t *testing.T) {
	h := newHarness(t, 4)
	h.sync.OnWindowChange(0, 3)
	h.sync.SetVisibleIndex(2)

	h.sync.SetFocused(false)
	if got := h.factory.playing(); len(got) != 0 {
		t.Fatalf("playing after focus loss = %v", got)
	}

	h.sync.SetVisibleIndex(1)
	if got := h.factory.playing(); len(got) != 0 {
		t.Fatalf("unfocused scroll started playback: %v", got)
	}

	h.sync.SetFocused(true)
	got := h.factory.playing()
	if len(got) != 1 || got[0] != "sim://1" {
		t.Fatalf("playing after focus regain = %v, want [sim://1]", got)
	}
}

func TestHoldPausesAndReleaseResumes(t *testing.T) {
	h := newHarness(t, 3)
	h.sync.SetVisibleIndex(0)

	h.sync.BeginHold()
	if h.factory.handle(0).playing || !h.sync.Held() {
		t.Fatalf("playing = %v Held() = %v during hold", h.factory.handle(0).playing, h.sync.Held())
	}

	h.sync.EndHold()
	if !h.factory.handle(0).playing || h.sync.Held() {
		t.Fatalf("playing = %v Held() = %v after release", h.factory.handle(0).playing, h.sync.Held())
	}
}

func TestHeldOnlyWithCurrentItem(t *testing.T) {
	h := newHarness(t, 3)

	h.sync.BeginHold()
	if h.sync.Held() {
		t.Fatal("hold began with nothing current")
	}

	h.sync.SetVisibleIndex(0)
	h.sync.BeginHold()
	h.sync.SetVisibleIndex(2)
	if h.sync.Held() {
		t.Fatal("hold survived a change of current index")
	}
}

// stepRunner runs submitted opens only when the test says so.
type stepRunner struct {
	tasks []func()
}

func (r *stepRunner) Submit(task func()) error {
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *stepRunner) run() {
	tasks := r.tasks
	r.tasks = nil
	for _, task := range tasks {
		task()
	}
}

func TestOpensOffLoopPlayCurrentOnceAttached(t *testing.T) {
	f := &fakeFactory{handles: map[string]*fakeHandle{}, ready: map[string]func(){}}
	runner := &stepRunner{}
	loop := eventloop.New(clockwork.NewFakeClock(), logger.NewNop())
	p := pool.New(pool.Opts{Factory: f, Poster: loop, Runner: runner, Items: feed(3), Logger: logger.NewNop()})
	s := New(Opts{Scheduler: loop, Pool: p, Muted: true, Logger: logger.NewNop()})

	s.OnWindowChange(0, 1)
	s.SetVisibleIndex(0)
	if len(f.handles) != 0 {
		t.Fatalf("opened %d handles on the loop", len(f.handles))
	}
	if got := p.Playing(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("Playing() = %v, want intent [0] recorded", got)
	}

	runner.run()
	loop.Flush()

	if h := f.handle(0); h == nil || !h.playing || !h.muted {
		t.Fatalf("handle 0 = %+v, want playing and muted", h)
	}
	if h := f.handle(1); h == nil || h.playing || !h.muted {
		t.Fatalf("handle 1 = %+v, want paused and muted", h)
	}
	s.Close()
}


func TestReleaseDoesNotResumeWhenUnfocusedOrMoved(t *testing.T) {
	h := newHarness(t, 3)
	h.sync.SetVisibleIndex(0)

	h.sync.BeginHold()
	h.sync.SetFocused(false)
	h.sync.EndHold()
	if h.factory.handle(0).playing {
		t.Fatal("release resumed an unfocused screen")
	}

	h.sync.SetFocused(true)
	h.sync.BeginHold()
	h.sync.SetVisibleIndex(1)
	h.sync.EndHold()
	if h.factory.handle(0).playing {
		t.Fatal("release resumed an index that is no longer current")
	}
	if !h.factory.handle(1).playing {
		t.Fatal("new current index should play after the hold was abandoned")
	}
}

func TestPollingFollowsCurrentIndex(t *testing.T) {
	h := newHarness(t, 3)

	var reports []string
	h.sync.OnProgress(func(i int, r float64) { reports = append(reports, fmt.Sprintf("%d:%.2f", i, r)) })

	h.sync.SetVisibleIndex(0)
	h.clock.Advance(100 * time.Millisecond)
	h.loop.RunDue()
	if len(reports) != 0 {
		t.Fatalf("reported %v while duration unknown", reports)
	}

	h.factory.handle(0).status = decoder.Status{Position: 2 * time.Second, Duration: 8 * time.Second}
	h.clock.Advance(100 * time.Millisecond)
	h.loop.RunDue()
	if len(reports) != 1 || reports[0] != "0:0.25" {
		t.Fatalf("reports = %v, want [0:0.25]", reports)
	}

	h.sync.SetVisibleIndex(1)
	h.clock.Advance(time.Second)
	h.loop.RunDue()
	if len(reports) != 1 {
		t.Fatalf("reports = %v, index 0 kept polling after it stopped being current", reports)
	}
	if h.loop.Pending() != 1 {
		t.Fatalf("Pending() = %d, want one poll", h.loop.Pending())
	}
}

func TestPollingStopsWhenCurrentLeavesWindow(t *testing.T) {
	h := newHarness(t, 10)
	h.sync.SetVisibleIndex(0)
	if !h.sync.Polling() {
		t.Fatal("no poll scheduled for the current index")
	}

	h.sync.OnWindowChange(5, 7)
	if h.sync.Polling() {
		t.Fatal("poll survived its index leaving the window")
	}
}

func TestReadinessReappliesIntent(t *testing.T) {
	h := newHarness(t, 2)
	h.sync.SetMuted(true)
	h.sync.SetVisibleIndex(0)
	before := h.factory.handle(0).plays

	h.factory.ready["sim://0"]()
	h.loop.Flush()

	if got := h.factory.handle(0).plays; got != before+1 {
		t.Fatalf("plays = %d, want %d after readiness", got, before+1)
	}
}

func TestCloseReleasesAndCancels(t *testing.T) {
	h := newHarness(t, 5)
	h.sync.OnWindowChange(0, 2)
	h.sync.SetVisibleIndex(1)

	h.sync.Close()
	h.sync.Close()
	h.sync.SetVisibleIndex(2)

	if h.loop.Pending() != 0 {
		t.Fatalf("Pending() = %d after Close", h.loop.Pending())
	}
	if h.pool.Len() != 0 {
		t.Fatalf("pool has %d entries after Close", h.pool.Len())
	}
	for uri, fh := range h.factory.handles {
		if !fh.closed || fh.playing {
			t.Fatalf("%s closed = %v playing = %v", uri, fh.closed, fh.playing)
		}
	}
}

func TestDecoderFailuresAreNonFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mock_decoder.NewMockFactory(ctrl)
	factory.EXPECT().Open(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, func()) (decoder.Handle, error) {
			h := mock_decoder.NewMockHandle(ctrl)
			boom := errors.New("decoder gone")
			h.EXPECT().Play(gomock.Any()).Return(boom).AnyTimes()
			h.EXPECT().Pause(gomock.Any()).Return(boom).AnyTimes()
			h.EXPECT().SetMuted(gomock.Any(), gomock.Any()).Return(boom).AnyTimes()
			h.EXPECT().Status(gomock.Any()).Return(decoder.Status{}, boom).AnyTimes()
			h.EXPECT().Close().Return(boom).AnyTimes()
			return h, nil
		}).AnyTimes()

	s, p, loop, clock := newHarnessWithFactory(t, factory, 3)
	progressed := false
	s.OnProgress(func(int, float64) { progressed = true })

	s.SetVisibleIndex(0)
	s.SetVisibleIndex(1)
	s.ToggleMute()
	clock.Advance(time.Second)
	loop.RunDue()

	if got := p.Playing(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("Playing() = %v, want [1] recorded optimistically", got)
	}
	if !s.State().Muted {
		t.Fatal("mute flag not recorded")
	}
	if progressed {
		t.Fatal("failed status call produced progress")
	}

	s.Close()
	if loop.Pending() != 0 {
		t.Fatalf("Pending() = %d after Close", loop.Pending())
	}
}
