package screen

import (
	"github.com/google/uuid"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/gesture"
	"github.com/orgball2608/moments-player/internal/story"
	"github.com/orgball2608/moments-player/pkg/logger"
)

// StorySession is one open story viewer: exactly one sequencer, and with it
// one progress state, for its whole life.
type StorySession struct {
	id     string
	seq    *story.Sequencer
	router *gesture.Router
	logger logger.Logger

	onClosed func()
	closed   bool
}

// OpenStorySession starts a sequencer over items and routes story gestures
// to it. onClosed runs once when the session ends by exit or Exit.
func OpenStorySession(deps Deps, router *gesture.Router, items []domain.StoryItem, start int, onClosed func()) *StorySession {
	s := &StorySession{
		id:       uuid.NewString(),
		router:   router,
		logger:   deps.Logger.WithComponent("StorySession"),
		onClosed: onClosed,
	}
	s.seq = story.New(deps.Loop, items, start, story.Config{
		TickInterval:  deps.Config.Player.TickInterval,
		TickIncrement: deps.Config.Player.TickIncrement,
	}, deps.Logger)
	s.seq.OnExit(s.Exit)

	if router != nil {
		router.AttachStory(s.seq)
	}

	s.logger.Info("Story session opened", "session_id", s.id, "items", len(items), "start", start)
	s.seq.Start()
	return s
}

func (s *StorySession) ID() string {
	return s.id
}

func (s *StorySession) Sequencer() *story.Sequencer {
	return s.seq
}

func (s *StorySession) Closed() bool {
	return s.closed
}

// Exit ends the session and notifies the host.
func (s *StorySession) Exit() {
	if s.closed {
		return
	}
	s.close()
	if s.onClosed != nil {
		s.onClosed()
	}
}

// close ends the session without notifying the host, for unmount.
func (s *StorySession) close() {
	if s.closed {
		return
	}
	s.closed = true
	s.seq.Close()
	if s.router != nil {
		s.router.AttachStory(nil)
	}
	s.logger.Info("Story session closed", "session_id", s.id)
}
