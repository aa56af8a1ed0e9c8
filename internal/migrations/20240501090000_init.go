package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

func upInit(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	CREATE TABLE feed_items (
		id            VARCHAR PRIMARY KEY,
		owner_id      VARCHAR NOT NULL,
		owner_name    VARCHAR NOT NULL,
		media_uri     VARCHAR NOT NULL DEFAULT '',
		caption       TEXT NOT NULL DEFAULT '',
		comment_count INTEGER NOT NULL DEFAULT 0,
		position      INTEGER NOT NULL,
		posted_at     TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE INDEX feed_items_position_idx ON feed_items (position);

	CREATE TABLE stories (
		id         VARCHAR PRIMARY KEY,
		owner_id   VARCHAR NOT NULL,
		owner_name VARCHAR NOT NULL,
		media_uri  VARCHAR NOT NULL DEFAULT '',
		position   INTEGER NOT NULL,
		posted_at  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	);
	CREATE INDEX stories_posted_at_idx ON stories (posted_at);

	CREATE TABLE likes (
		id         SERIAL PRIMARY KEY,
		item_id    VARCHAR NOT NULL,
		user_id    VARCHAR NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		UNIQUE (item_id, user_id)
	);
	`)
	return err
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	DROP TABLE likes;
	DROP TABLE stories;
	DROP TABLE feed_items;
	`)
	return err
}
