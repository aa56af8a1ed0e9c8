package story

import (
	"context"
	"errors"
	"time"

	"github.com/orgball2608/moments-player/internal/domain"
)

var ErrNotFound = errors.New("story not found")

//go:generate go run go.uber.org/mock/mockgen -source=story.go -destination=mocks/mock.go

type Repository interface {
	// ListActive returns stories younger than ttl, grouped by owner and
	// ordered by position.
	ListActive(ctx context.Context, ttl time.Duration) ([]domain.StoryItem, error)

	// ListByOwner returns one owner's active stories in position order.
	ListByOwner(ctx context.Context, ownerID string, ttl time.Duration) ([]domain.StoryItem, error)

	// CleanupExpired deletes stories older than ttl.
	CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error)
}
