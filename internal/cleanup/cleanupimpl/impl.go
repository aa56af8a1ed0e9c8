package cleanupimpl

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/moments-player/internal/cleanup"
	"github.com/orgball2608/moments-player/internal/repositories/story"
	"github.com/orgball2608/moments-player/pkg/config"
	"github.com/orgball2608/moments-player/pkg/logger"
	"go.uber.org/fx"
)

const runTimeout = 5 * time.Minute

type Opts struct {
	fx.In

	StoryRepo story.Repository
	Clock     clockwork.Clock
	Config    *config.Config
	Logger    logger.Logger
}

type CleanupImpl struct {
	StoryRepo story.Repository
	Clock     clockwork.Clock
	Config    *config.Config
	Logger    logger.Logger
}

func New(opts Opts) *CleanupImpl {
	return &CleanupImpl{
		StoryRepo: opts.StoryRepo,
		Clock:     opts.Clock,
		Config:    opts.Config,
		Logger:    opts.Logger.WithComponent("StoryCleanup"),
	}
}

var _ cleanup.Client = (*CleanupImpl)(nil)

func (c *CleanupImpl) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	rowsDeleted, err := c.StoryRepo.CleanupExpired(ctx, c.Config.Stories.TTL)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired stories: %w", err)
	}
	return rowsDeleted, nil
}

// Schedule sets up a job deleting expired stories every cleanup interval.
func (c *CleanupImpl) Schedule(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(c.Clock))
	if err != nil {
		return fmt.Errorf("failed to create cleanup scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(c.Config.Stories.CleanupInterval),
		gocron.NewTask(func() {
			if ctx.Err() != nil {
				c.Logger.Info("Context cancelled, skipping story cleanup")
				return
			}

			rowsDeleted, err := c.RunOnce(ctx)
			if err != nil {
				c.Logger.Error("Story cleanup failed", "error", err)
				return
			}
			c.Logger.Info("Story cleanup completed", "rows_deleted", rowsDeleted)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = scheduler.Shutdown()
		return fmt.Errorf("failed to schedule story cleanup: %w", err)
	}

	scheduler.Start()

	go func() {
		<-ctx.Done()
		c.Logger.Info("Stopping story cleanup scheduler")
		if err := scheduler.Shutdown(); err != nil {
			c.Logger.Error("Failed to shut down cleanup scheduler", "error", err)
		}
	}()

	return nil
}
