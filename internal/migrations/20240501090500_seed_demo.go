package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upSeedDemo, downSeedDemo)
}

type seedOwner struct {
	id, name string
}

var demoOwners = []seedOwner{
	{"u-ana", "ana"},
	{"u-bao", "bao"},
	{"u-chi", "chi"},
}

// upSeedDemo fills an empty database with a playable feed and one story
// collection per owner. Media URIs use the sim:// scheme understood by the
// simulated decoder; the mpv backend needs real URLs.
func upSeedDemo(ctx context.Context, tx *sql.Tx) error {
	for i := 0; i < 12; i++ {
		owner := demoOwners[i%len(demoOwners)]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO feed_items (id, owner_id, owner_name, media_uri, caption, comment_count, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			fmt.Sprintf("reel-%02d", i), owner.id, owner.name,
			fmt.Sprintf("sim://reel/%02d", i), fmt.Sprintf("moment #%d from %s", i+1, owner.name),
			(i*37)%120, i,
		)
		if err != nil {
			return fmt.Errorf("seed feed item %d: %w", i, err)
		}
	}

	for _, owner := range demoOwners {
		for pos := 0; pos < 3; pos++ {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO stories (id, owner_id, owner_name, media_uri, position)
				VALUES ($1, $2, $3, $4, $5)`,
				fmt.Sprintf("story-%s-%d", owner.name, pos), owner.id, owner.name,
				fmt.Sprintf("sim://story/%s/%d", owner.name, pos), pos,
			)
			if err != nil {
				return fmt.Errorf("seed story %s/%d: %w", owner.name, pos, err)
			}
		}
	}
	return nil
}

func downSeedDemo(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	DELETE FROM likes;
	DELETE FROM stories WHERE id LIKE 'story-%';
	DELETE FROM feed_items WHERE id LIKE 'reel-%';
	`)
	return err
}
