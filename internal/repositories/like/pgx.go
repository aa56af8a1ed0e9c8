package like

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-player/internal/domain"
	"github.com/orgball2608/moments-player/internal/repositories"
	"github.com/orgball2608/moments-player/pkg/logger"
)

const uniqueViolation = "23505"

type Pgx struct {
	pg     *pgxpool.Pool
	clock  clockwork.Clock
	logger logger.Logger
}

func NewPgx(pg *pgxpool.Pool, clock clockwork.Clock, logger logger.Logger) *Pgx {
	return &Pgx{
		pg:     pg,
		clock:  clock,
		logger: logger.WithComponent("LikeRepo"),
	}
}

var _ Repository = (*Pgx)(nil)

func insertLike(like domain.Like) sq.InsertBuilder {
	return repositories.SqBuilder.
		Insert("likes").
		Columns("item_id", "user_id", "created_at").
		Values(like.ItemID, like.UserID, like.CreatedAt)
}

func (p *Pgx) Create(ctx context.Context, like domain.Like) error {
	if like.CreatedAt.IsZero() {
		like.CreatedAt = p.clock.Now()
	}

	query, args, err := insertLike(like).ToSql()
	if err != nil {
		return repositories.ErrBadQuery
	}

	_, err = p.pg.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (p *Pgx) Count(ctx context.Context, itemID string) (int, error) {
	query, args, err := repositories.SqBuilder.
		Select("COUNT(*)").
		From("likes").
		Where(sq.Eq{"item_id": itemID}).
		ToSql()
	if err != nil {
		return 0, repositories.ErrBadQuery
	}

	var n int
	if err := p.pg.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
