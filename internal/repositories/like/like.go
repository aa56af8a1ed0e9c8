package like

import (
	"context"
	"errors"

	"github.com/orgball2608/moments-player/internal/domain"
)

var ErrAlreadyExists = errors.New("like already exists")

//go:generate go run go.uber.org/mock/mockgen -source=like.go -destination=mocks/mock.go

type Repository interface {
	// Create records a like. Liking the same item twice returns ErrAlreadyExists.
	Create(ctx context.Context, like domain.Like) error

	// Count returns how many users liked itemID.
	Count(ctx context.Context, itemID string) (int, error)
}
