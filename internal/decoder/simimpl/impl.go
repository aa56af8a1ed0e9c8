// Package simimpl is a decoder backend that plays nothing. Position advances
// with the injected clock, which makes it suitable for headless runs and
// deterministic tests.
package simimpl

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-player/internal/decoder"
	"github.com/orgball2608/moments-player/pkg/config"
	"github.com/orgball2608/moments-player/pkg/logger"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Clock  clockwork.Clock
	Config *config.Config
	Logger logger.Logger
}

type Factory struct {
	clock     clockwork.Clock
	duration  time.Duration
	loadDelay time.Duration
	logger    logger.Logger
}

var _ decoder.Factory = (*Factory)(nil)

func New(opts Opts) *Factory {
	return NewFactory(opts.Clock, opts.Config.Player.SimDuration, opts.Config.Player.SimLoadDelay, opts.Logger)
}

// NewFactory builds a factory whose media all last duration and become ready
// loadDelay after Open.
func NewFactory(clock clockwork.Clock, duration, loadDelay time.Duration, log logger.Logger) *Factory {
	return &Factory{
		clock:     clock,
		duration:  duration,
		loadDelay: loadDelay,
		logger:    log.WithComponent("SimDecoder"),
	}
}

func (f *Factory) Open(ctx context.Context, uri string, ready func()) (decoder.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := &Handle{
		clock:    f.clock,
		uri:      uri,
		duration: f.duration,
	}

	// An empty source is accepted but never finishes loading.
	if uri == "" {
		f.logger.Debug("Opened handle on empty source")
		return h, nil
	}

	h.loadTimer = f.clock.AfterFunc(f.loadDelay, func() {
		if h.markReady() && ready != nil {
			ready()
		}
	})
	return h, nil
}

// Handle simulates a looping video of fixed duration.
type Handle struct {
	clock    clockwork.Clock
	uri      string
	duration time.Duration

	mu        sync.Mutex
	loadTimer clockwork.Timer
	ready     bool
	closed    bool
	playing   bool
	muted     bool
	// played is the position accumulated before since.
	played time.Duration
	since  time.Time
}

var _ decoder.Handle = (*Handle)(nil)

func (h *Handle) markReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.ready {
		return false
	}
	h.ready = true
	if h.playing {
		h.since = h.clock.Now()
	}
	return true
}

func (h *Handle) advancing() bool {
	return h.ready && h.playing
}

func (h *Handle) Play(ctx context.Context) error {
	return h.do(ctx, func() {
		if h.playing {
			return
		}
		h.playing = true
		h.since = h.clock.Now()
	})
}

func (h *Handle) Pause(ctx context.Context) error {
	return h.do(ctx, func() {
		if !h.playing {
			return
		}
		if h.ready {
			h.played += h.clock.Since(h.since)
		}
		h.playing = false
	})
}

func (h *Handle) SetMuted(ctx context.Context, muted bool) error {
	return h.do(ctx, func() { h.muted = muted })
}

func (h *Handle) Status(ctx context.Context) (decoder.Status, error) {
	var st decoder.Status
	err := h.do(ctx, func() {
		if !h.ready {
			return
		}
		pos := h.played
		if h.advancing() {
			pos += h.clock.Since(h.since)
		}
		if h.duration > 0 {
			pos %= h.duration
		}
		st = decoder.Status{Position: pos, Duration: h.duration}
	})
	return st, err
}

// Muted reports the last applied mute flag.
func (h *Handle) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

// Playing reports whether the handle was last told to play.
func (h *Handle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	h.playing = false
	if h.loadTimer != nil {
		h.loadTimer.Stop()
	}
	return nil
}

func (h *Handle) do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return decoder.ErrClosed
	}
	fn()
	return nil
}
