package story

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/repositories"
	"github.com/orgball2608/moments-player/pkg/logger"
)

type PgxRepository struct {
	pool   *pgxpool.Pool
	clock  clockwork.Clock
	logger logger.Logger
}

func NewPgxRepository(pool *pgxpool.Pool, clock clockwork.Clock, logger logger.Logger) *PgxRepository {
	return &PgxRepository{
		pool:   pool,
		clock:  clock,
		logger: logger.WithComponent("StoryRepo"),
	}
}

var _ Repository = (*PgxRepository)(nil)

func selectActive(cutoff time.Time) sq.SelectBuilder {
	return repositories.SqBuilder.
		Select("id", "owner_id", "owner_name", "media_uri", "position", "posted_at").
		From("stories").
		Where(sq.GtOrEq{"posted_at": cutoff}).
		OrderBy("owner_id", "position")
}

func (r *PgxRepository) ListActive(ctx context.Context, ttl time.Duration) ([]domain.StoryItem, error) {
	return r.list(ctx, selectActive(r.clock.Now().Add(-ttl)))
}

func (r *PgxRepository) ListByOwner(ctx context.Context, ownerID string, ttl time.Duration) ([]domain.StoryItem, error) {
	items, err := r.list(ctx, selectActive(r.clock.Now().Add(-ttl)).Where(sq.Eq{"owner_id": ownerID}))
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items, nil
}

func (r *PgxRepository) list(ctx context.Context, b sq.SelectBuilder) ([]domain.StoryItem, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.StoryItem
	for rows.Next() {
		var item domain.StoryItem
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.OwnerName, &item.MediaURI, &item.Position, &item.PostedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func deleteExpired(cutoff time.Time) sq.DeleteBuilder {
	return repositories.SqBuilder.
		Delete("stories").
		Where(sq.Lt{"posted_at": cutoff})
}

func (r *PgxRepository) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	query, args, err := deleteExpired(r.clock.Now().Add(-ttl)).ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
