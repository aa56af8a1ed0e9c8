package main

import (
	"context"
	"fmt"
	"os"

	"github.com/orgball2608/moments-player/internal/db"
	"github.com/orgball2608/moments-player/pkg/config"
	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

const defaultMigrationsDir = "internal/migrations"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the feed, stories and likes schema",
		SilenceUsage: true,
	}

	root.AddCommand(
		dbCommand("up", "Apply all pending migrations", (*db.Postgres).Up),
		dbCommand("down", "Roll back the latest migration", (*db.Postgres).Down),
		dbCommand("status", "Print the state of every migration", (*db.Postgres).Status),
		dbCommand("reset", "Roll back all migrations", (*db.Postgres).Reset),
		versionCommand(),
		createCommand(),
	)
	return root
}

func connect(cmd *cobra.Command) (*db.Postgres, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return db.NewConnect(cmd.Context(), cfg, logger.New(logger.Opts{Env: cfg.App.Env, Level: cfg.App.LogLevel}))
}

func dbCommand(use, short string, action func(*db.Postgres, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pg.Close()

			return action(pg, cmd.Context())
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pg.Close()

			v, err := pg.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func createCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new Go migration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "Creating migration in: %s\n", dir)
			if err := goose.Create(nil, dir, args[0], "go"); err != nil {
				return fmt.Errorf("failed to create migration: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", defaultMigrationsDir, "directory holding the Go migrations")
	return cmd
}
