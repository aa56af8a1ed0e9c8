// Package db runs the schema migrations compiled into the binary.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/orgball2608/moments-player/internal/migrations"
	"github.com/orgball2608/moments-player/pkg/config"
	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/pressly/goose/v3"
)

// Go migrations register themselves, so goose needs no directory on disk.
const migrationsDir = "."

type Postgres struct {
	db     *sql.DB
	logger logger.Logger
}

func NewConnect(ctx context.Context, cfg *config.Config, log logger.Logger) (*Postgres, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}

	connect, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = connect.PingContext(ctx); err != nil {
		connect.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Postgres{db: connect, logger: log.WithComponent("Migrations")}, nil
}

func (pg *Postgres) Close() error {
	return pg.db.Close()
}

func (pg *Postgres) Up(ctx context.Context) error {
	if err := goose.UpContext(ctx, pg.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	pg.logger.Info("Migrations applied")
	return nil
}

func (pg *Postgres) Down(ctx context.Context) error {
	if err := goose.DownContext(ctx, pg.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	pg.logger.Info("Migration rolled back")
	return nil
}

func (pg *Postgres) Reset(ctx context.Context) error {
	if err := goose.ResetContext(ctx, pg.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to reset migrations: %w", err)
	}
	pg.logger.Info("All migrations rolled back")
	return nil
}

// Status prints the applied state of every migration through goose's logger.
func (pg *Postgres) Status(ctx context.Context) error {
	if err := goose.StatusContext(ctx, pg.db, migrationsDir); err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (pg *Postgres) Version(ctx context.Context) (int64, error) {
	v, err := goose.GetDBVersionContext(ctx, pg.db)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return v, nil
}

// Migrate applies pending migrations and closes its connection.
func Migrate(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	pg, err := NewConnect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pg.Close()

	return pg.Up(ctx)
}
