package screen

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-player/internal/decoder/simimpl"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/eventloop"
	"github.com/orgball2608/moments-player/internal/pool"
	"github.com/orgball2608/moments-player/pkg/config"
	"github.com/orgball2608/moments-player/pkg/logger"
	"go.uber.org/goleak"
)

func testDeps(t *testing.T, clock clockwork.Clock) Deps {
	t.Helper()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Player.SimLoadDelay = time.Hour
	cfg.Player.WindowRadius = 1

	loop := eventloop.New(clock, logger.NewNop())
	return Deps{
		Loop:    loop,
		Factory: simimpl.NewFactory(clock, 10*time.Second, cfg.Player.SimLoadDelay, logger.NewNop()),
		Config:  cfg,
		Logger:  logger.NewNop(),
	}
}

func feedItems(n int) []domain.FeedItem {
	items := make([]domain.FeedItem, n)
	for i := range items {
		items[i] = domain.FeedItem{ID: fmt.Sprintf("reel-%d", i), MediaURI: fmt.Sprintf("sim://%d", i)}
	}
	return items
}

func storyItems(n int) []domain.StoryItem {
	items := make([]domain.StoryItem, n)
	for i := range items {
		items[i] = domain.StoryItem{ID: fmt.Sprintf("story-%d", i), MediaURI: fmt.Sprintf("sim://s%d", i)}
	}
	return items
}

func advance(deps Deps, clock *clockwork.FakeClock, d time.Duration) {
	clock.Advance(d)
	deps.Loop.RunDue()
}

func TestMountRendersFirstWindowAndPlaysFirstItem(t *testing.T) {
	clock := clockwork.NewFakeClock()
	deps := testDeps(t, clock)
	f := NewFeedScreen(deps)

	f.Mount(feedItems(6))

	if f.ID() == "" {
		t.Fatal("mounted screen has no session id")
	}
	if got := f.Pool().Len(); got != 2 {
		t.Fatalf("pool has %d entries, want window [0,1]", got)
	}
	if got := f.Pool().Playing(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("Playing() = %v, want [0]", got)
	}
	if st := f.Sync().State(); !st.Focused {
		t.Fatal("new feed screen is not focused")
	}
}

func TestScrollMovesWindowAndCurrent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	deps := testDeps(t, clock)
	f := NewFeedScreen(deps)
	f.Mount(feedItems(10))

	f.ScrollSettled(4*640, 640)

	var got []int
	f.Pool().ForEach(func(e *pool.Entry) { got = append(got, e.Index) })
	if fmt.Sprint(got) != "[3 4 5]" {
		t.Fatalf("window = %v, want [3 4 5]", got)
	}
	if playing := f.Pool().Playing(); len(playing) != 1 || playing[0] != 4 {
		t.Fatalf("Playing() = %v, want [4]", playing)
	}
}

func TestUnmountCancelsEverything(t *testing.T) {
	clock := clockwork.NewFakeClock()
	deps := testDeps(t, clock)
	f := NewFeedScreen(deps)
	f.Mount(feedItems(5))

	f.ScrollTo(2)
	f.Router().FeedTap()
	f.Router().FeedLongPress()
	session := f.OpenStories(storyItems(3), 0, nil)
	advance(deps, clock, 1500*time.Millisecond)
	f.Router().StoryLongPress()
	f.Router().StoryRelease()

	f.Unmount()
	f.Unmount()

	if n := deps.Loop.Pending(); n != 0 {
		t.Fatalf("Pending() = %d after unmount", n)
	}
	if f.Mounted() || f.Stories() != nil {
		t.Fatal("screen still holds engine state after unmount")
	}
	if !session.Closed() {
		t.Fatal("story session survived unmount")
	}

	advance(deps, clock, time.Minute)
	if n := deps.Loop.Pending(); n != 0 {
		t.Fatalf("Pending() = %d after time passed", n)
	}
}

func TestStoriesTakeFocusUntilExit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	deps := testDeps(t, clock)
	f := NewFeedScreen(deps)
	f.Mount(feedItems(3))

	exited := 0
	f.OpenStories(storyItems(3), 0, func() { exited++ })

	if got := f.Pool().Playing(); len(got) != 0 {
		t.Fatalf("feed still playing %v under stories", got)
	}
	f.SetFocused(true)
	if got := f.Pool().Playing(); len(got) != 0 {
		t.Fatal("host focus resumed the feed under an open story session")
	}

	advance(deps, clock, 29900*time.Millisecond)
	if exited != 0 {
		t.Fatal("stories exited early")
	}
	advance(deps, clock, 100*time.Millisecond)
	if exited != 1 {
		t.Fatalf("exits = %d at 30s, want 1", exited)
	}
	if f.Stories() != nil {
		t.Fatal("session still attached after exit")
	}
	if got := f.Pool().Playing(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("Playing() = %v after stories closed, want [0]", got)
	}
}

func TestStoryExitKeepsHostFocusLoss(t *testing.T) {
	clock := clockwork.NewFakeClock()
	deps := testDeps(t, clock)
	f := NewFeedScreen(deps)
	f.Mount(feedItems(4))

	f.OpenStories(storyItems(1), 0, nil)
	f.SetFocused(false)
	advance(deps, clock, 11*time.Second)

	if f.Stories() != nil {
		t.Fatal("story session still open after its only item ran out")
	}
	if f.Sync().State().Focused {
		t.Fatal("feed regained focus although the host is in the background")
	}
	if got := f.Pool().Playing(); len(got) != 0 {
		t.Fatalf("Playing() = %v while the host is unfocused, want none", got)
	}

	f.SetFocused(true)
	if got := f.Pool().Playing(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("Playing() = %v after host focus returned, want [0]", got)
	}
}

func TestMountHonoursEarlierFocusLoss(t *testing.T) {
	clock := clockwork.NewFakeClock()
	deps := testDeps(t, clock)
	f := NewFeedScreen(deps)

	f.SetFocused(false)
	f.Mount(feedItems(2))

	if f.HostFocused() || f.Sync().State().Focused {
		t.Fatal("mount ignored the host focus signal")
	}
	if got := f.Pool().Playing(); len(got) != 0 {
		t.Fatalf("Playing() = %v on an unfocused mount", got)
	}
}

func TestEmptyStoriesExitImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	deps := testDeps(t, clock)
	f := NewFeedScreen(deps)
	f.Mount(feedItems(2))

	exited := false
	session := f.OpenStories(nil, 0, func() { exited = true })

	if !exited || !session.Closed() || f.Stories() != nil {
		t.Fatalf("exited = %v closed = %v attached = %v", exited, session.Closed(), f.Stories() != nil)
	}
	if got := f.Pool().Playing(); len(got) != 1 {
		t.Fatalf("feed not resumed, Playing() = %v", got)
	}
}

func TestStandaloneStorySessionExit(t *testing.T) {
	clock := clockwork.NewFakeClock()
	deps := testDeps(t, clock)

	closed := 0
	s := OpenStorySession(deps, nil, storyItems(2), 1, func() { closed++ })
	if idx := s.Sequencer().Snapshot().CurrentIndex; idx != 1 {
		t.Fatalf("start index = %d, want 1", idx)
	}

	s.Exit()
	s.Exit()

	if closed != 1 {
		t.Fatalf("onClosed called %d times, want 1", closed)
	}
	if deps.Loop.Pending() != 0 {
		t.Fatalf("Pending() = %d after Exit", deps.Loop.Pending())
	}
}

func TestCloseUnmountsOnLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	deps := testDeps(t, clockwork.NewRealClock())
	f := NewFeedScreen(deps)
	f.Mount(feedItems(3))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- deps.Loop.Run(ctx) }()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer closeCancel()
	if err := f.Close(closeCtx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v", err)
	}
	if f.Mounted() {
		t.Fatal("screen still mounted after Close")
	}
}
