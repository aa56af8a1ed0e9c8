package main

import (
	"context"
	"fmt"
	"os"

	"github.com/orgball2608/moments-player/internal/app"
	"github.com/orgball2608/moments-player/pkg/config"
	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		backend string
		verbose bool
	)

	root := &cobra.Command{
		Use:          "moments-player",
		Short:        "Play a vertical feed of reels and timed stories in the terminal",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyBackend(backend)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), app.Player, verbose)
		},
	}
	root.PersistentFlags().StringVar(&backend, "backend", "", "decoder backend: sim or mpv (overrides PLAYER_BACKEND)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print dependency graph events")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Play the feed without a terminal UI and serve /healthz",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp(cmd.Context(), app.Headless, true)
		},
	})

	return root
}

// applyBackend routes the flag through the environment so config.New sees it.
func applyBackend(backend string) error {
	switch backend {
	case "":
		return nil
	case config.BackendSim, config.BackendMPV:
		return os.Setenv("PLAYER_BACKEND", backend)
	default:
		return fmt.Errorf("unknown backend %q: want %s or %s", backend, config.BackendSim, config.BackendMPV)
	}
}

func runApp(ctx context.Context, opts fx.Option, verbose bool) error {
	log := logger.New(logger.Opts{})

	// The terminal UI owns stdout, so fx stays quiet unless asked.
	fxLogger := fx.NopLogger
	if verbose {
		fxLogger = fx.Logger(log)
	}

	application := fx.New(
		fxLogger,
		opts,
	)

	// Start the application
	if err := application.Start(ctx); err != nil {
		log.Error("Failed to start application", "error", err)
		return err
	}

	// Wait for an interrupt signal or for the terminal host to quit
	sig := <-application.Done()
	log.Debug("Stopping application", "signal", sig)

	// Gracefully shutdown the application
	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		log.Error("Failed to stop application", "error", err)
		return err
	}
	return nil
}
