// Package decoder defines the opaque media capability the playback engine
// drives. Backends live in subpackages.
package decoder

import (
	"context"
	"errors"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -source=decoder.go -destination=mocks/mock.go

var (
	// ErrOperation marks a failed Play/Pause/SetMuted/Status call.
	ErrOperation = errors.New("decoder operation failed")
	ErrClosed    = errors.New("decoder handle closed")
)

// Status is a point-in-time playback report. Duration is zero when the
// backend does not know it yet.
type Status struct {
	Position time.Duration
	Duration time.Duration
}

// Ratio returns position/duration clamped to [0,1]. ok is false while the
// duration is unknown.
func (s Status) Ratio() (ratio float64, ok bool) {
	if s.Duration <= 0 {
		return 0, false
	}
	ratio = float64(s.Position) / float64(s.Duration)
	switch {
	case ratio < 0:
		ratio = 0
	case ratio > 1:
		ratio = 1
	}
	return ratio, true
}

// Handle is one playable media instance.
type Handle interface {
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	SetMuted(ctx context.Context, muted bool) error
	Status(ctx context.Context) (Status, error)
	Close() error
}

// Factory opens handles. ready is called at most once, from any goroutine,
// when the media has loaded; a handle on an empty source never calls it.
type Factory interface {
	Open(ctx context.Context, uri string, ready func()) (Handle, error)
}
