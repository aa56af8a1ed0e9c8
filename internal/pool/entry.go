package pool

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/orgball2608/moments-player/internal/decoder"
	apperrors "github.com/orgball2608/moments-player/pkg/errors"
)

// Entry is one pooled handle plus the state the engine intends it to have.
// Flags are recorded even when the backend call fails.
type Entry struct {
	pool   *Pool
	handle decoder.Handle

	Index   int
	ItemID  string
	Playing bool
	Muted   bool
	Ready   bool

	opening  bool
	released bool
}

// HasHandle reports whether the backend managed to open media for the entry.
func (e *Entry) HasHandle() bool {
	return e.handle != nil
}

// Opening reports whether the handle is still being opened off the loop.
func (e *Entry) Opening() bool {
	return e.opening
}

// replay pushes the intent recorded before the handle existed. Backends
// start paused and unmuted.
func (e *Entry) replay() {
	ctx := context.Background()
	if e.Muted {
		e.SetMuted(ctx, true)
	}
	if e.Playing {
		e.Play(ctx)
	}
}

func (e *Entry) Play(ctx context.Context) {
	e.Playing = true
	e.call(ctx, "play", func(ctx context.Context, h decoder.Handle) error {
		return h.Play(ctx)
	})
}

func (e *Entry) Pause(ctx context.Context) {
	e.Playing = false
	e.call(ctx, "pause", func(ctx context.Context, h decoder.Handle) error {
		return h.Pause(ctx)
	})
}

func (e *Entry) SetMuted(ctx context.Context, muted bool) {
	e.Muted = muted
	e.call(ctx, "set_muted", func(ctx context.Context, h decoder.Handle) error {
		return h.SetMuted(ctx, muted)
	})
}

// Status returns ok=false when there is no handle or the call failed.
func (e *Entry) Status(ctx context.Context) (decoder.Status, bool) {
	var st decoder.Status
	ok := e.call(ctx, "status", func(ctx context.Context, h decoder.Handle) error {
		var err error
		st, err = h.Status(ctx)
		return err
	})
	return st, ok
}

func (e *Entry) close() {
	e.released = true
	e.Playing = false
	if e.handle == nil {
		return
	}
	h := e.handle
	e.handle = nil

	e.guard("close", func() error { return h.Close() })
}

// call is the single site where decoder operations run. Failures and panics
// are logged and swallowed.
func (e *Entry) call(ctx context.Context, op string, fn func(ctx context.Context, h decoder.Handle) error) bool {
	if e.handle == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, e.pool.opTimeout)
	defer cancel()

	return e.guard(op, func() error { return fn(ctx, e.handle) })
}

func (e *Entry) guard(op string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			e.pool.logger.Error("Panic recovered in decoder call",
				"op", op,
				"index", e.Index,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	if err := fn(); err != nil {
		wrapped := apperrors.WrapWithCode(fmt.Errorf("%w: %w", decoder.ErrOperation, err), apperrors.CodeDecoderOperation, op)
		e.pool.logger.Warn("Decoder operation failed", "op", op, "index", e.Index, "error", wrapped)
		return false
	}
	return true
}
