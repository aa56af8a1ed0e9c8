package feed

import (
	"context"

	"github.com/orgball2608/moments-player/internal/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=feed.go -destination=mocks/mock.go

type Repository interface {
	// List returns up to limit feed items in feed order.
	List(ctx context.Context, limit int) ([]domain.FeedItem, error)
}
