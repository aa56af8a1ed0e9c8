package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-player/internal/cleanup"
	"github.com/orgball2608/moments-player/internal/cleanup/cleanupimpl"
	"github.com/orgball2608/moments-player/internal/db"
	"github.com/orgball2608/moments-player/internal/decoder"
	"github.com/orgball2608/moments-player/internal/decoder/mpvimpl"
	"github.com/orgball2608/moments-player/internal/decoder/simimpl"
	"github.com/orgball2608/moments-player/internal/eventloop"
	"github.com/orgball2608/moments-player/internal/pool"
	"github.com/orgball2608/moments-player/internal/ratelimit"
	"github.com/orgball2608/moments-player/internal/repositories/feed"
	repositories "github.com/orgball2608/moments-player/internal/repositories/fx"
	"github.com/orgball2608/moments-player/internal/screen"
	"github.com/orgball2608/moments-player/internal/tui"
	"github.com/orgball2608/moments-player/pkg/config"
	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/orgball2608/moments-player/pkg/pgx"
	"github.com/orgball2608/moments-player/pkg/workers"
	"go.uber.org/fx"
)

const readHeaderTimeout = 5 * time.Second

// Module wires the engine, storage and background jobs shared by every
// command.
var Module = fx.Options(
	fx.Provide(
		config.New,
		logger.FxOption,
		pgx.New,
		NewClock,
		eventloop.New,
		NewDecoderFactory,
		NewOpenWorkers,
		NewLimiter,
	),
	repositories.Module,
	fx.Provide(
		fx.Annotate(
			cleanupimpl.New,
			fx.As(new(cleanup.Client)),
		),
		screen.NewFeedScreen,
	),
	fx.Invoke(migrate),
	fx.Invoke(run),
)

// Player runs the feed in the terminal host and stops the app when the user
// quits.
var Player = fx.Options(
	Module,
	fx.Provide(tui.NewHost),
	fx.Invoke(runHost),
)

// Headless mounts the feed without a terminal host; the first item plays
// until the process is stopped.
var Headless = fx.Options(
	Module,
	fx.Invoke(mountHeadless),
)

func NewClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

func NewDecoderFactory(cfg *config.Config, clock clockwork.Clock, log logger.Logger) (decoder.Factory, error) {
	switch cfg.Player.Backend {
	case config.BackendSim:
		return simimpl.New(simimpl.Opts{Clock: clock, Config: cfg, Logger: log}), nil
	case config.BackendMPV:
		return mpvimpl.New(mpvimpl.Opts{Config: cfg, Logger: log}), nil
	default:
		return nil, fmt.Errorf("unknown player backend %q", cfg.Player.Backend)
	}
}

// NewOpenWorkers keeps decoder opens off the event loop. The pool outlives
// every feed screen and is released when the app stops.
func NewOpenWorkers(lc fx.Lifecycle, cfg *config.Config, log logger.Logger) (pool.Runner, error) {
	openWorkers, err := workers.New(cfg.Player.OpenWorkers, "DecoderOpenWorkers", log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			openWorkers.Release()
			return nil
		},
	})
	return openWorkers, nil
}

func NewLimiter(cfg *config.Config) ratelimit.Limiter {
	return ratelimit.NewInMemoryLimiter(cfg.Likes.Requests, cfg.Likes.Per, cfg.Likes.Burst)
}

func migrate(cfg *config.Config, log logger.Logger) error {
	if !cfg.Postgres.AutoMigrate {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	return db.Migrate(ctx, cfg, log)
}

func run(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, loop *eventloop.Loop,
	cleanupClient cleanup.Client, feedScreen *screen.FeedScreen) {
	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	server := newHttpServer(log, cfg)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(loopDone)
				if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Event loop stopped", "error", err)
				}
			}()

			go startHttpServer(log, server)

			if err := cleanupClient.Schedule(ctx); err != nil {
				log.Error("Schedule story cleanup error", "error", err)
			}
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			if err := feedScreen.Close(stopCtx); err != nil {
				log.Warn("Feed screen did not unmount", "error", err)
			}
			cancel()
			<-loopDone

			return server.Shutdown(stopCtx)
		},
	})
}

func runHost(lc fx.Lifecycle, shutdowner fx.Shutdowner, log logger.Logger, host *tui.Host) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := host.Run(ctx); err != nil {
					log.Error("Terminal host error", "error", err)
				}
				if err := shutdowner.Shutdown(); err != nil {
					log.Warn("Shutdown request failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			host.Quit()
			cancel()
			return nil
		},
	})
}

func mountHeadless(lc fx.Lifecycle, log logger.Logger, cfg *config.Config, loop *eventloop.Loop,
	feedRepo feed.Repository, feedScreen *screen.FeedScreen) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			items, err := feedRepo.List(ctx, cfg.App.FeedLimit)
			if err != nil {
				return fmt.Errorf("failed to load feed: %w", err)
			}
			log.Info("Mounting feed headless", "items", len(items), "backend", cfg.Player.Backend)
			loop.Post(func() { feedScreen.Mount(items) })
			return nil
		},
	})
}

func newHttpServer(log logger.Logger, cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheckHandler(w, r, log)
	})

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func startHttpServer(log logger.Logger, server *http.Server) {
	log.Info("Starting server", "addr", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server failed to start", "error", err)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request, logger logger.Logger) {
	logger.Debug("Health check request received", "Method", r.Method, "URL", r.URL.String())
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("ok")); err != nil {
		logger.Error("Failed to write response", "Error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
