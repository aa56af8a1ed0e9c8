package feed

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/repositories"
	"github.com/orgball2608/moments-player/pkg/logger"
)

type Pgx struct {
	pg     *pgxpool.Pool
	logger logger.Logger
}

func NewPgx(pg *pgxpool.Pool, logger logger.Logger) *Pgx {
	return &Pgx{
		pg:     pg,
		logger: logger.WithComponent("FeedRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func selectFeed(limit int) sq.SelectBuilder {
	b := repositories.SqBuilder.
		Select(
			"f.id", "f.owner_id", "f.owner_name", "f.media_uri", "f.caption",
			"(SELECT COUNT(*) FROM likes l WHERE l.item_id = f.id) AS like_count",
			"f.comment_count", "f.position", "f.posted_at",
		).
		From("feed_items f").
		OrderBy("f.position")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b
}

func (p *Pgx) List(ctx context.Context, limit int) ([]domain.FeedItem, error) {
	query, args, err := selectFeed(limit).ToSql()
	if err != nil {
		return nil, repositories.ErrBadQuery
	}

	rows, err := p.pg.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.FeedItem
	for rows.Next() {
		var item domain.FeedItem
		if err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&item.OwnerName,
			&item.MediaURI,
			&item.Caption,
			&item.LikeCount,
			&item.CommentCount,
			&item.Position,
			&item.PostedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	p.logger.Debug("Loaded feed", "count", len(items))
	return items, nil
}
