// Package screen owns the per-screen lifetime of the playback engine: what a
// mount creates, an unmount tears down.
package screen

import (
	"github.com/orgball2608/moments-player/internal/decoder"
	"github.com/orgball2608/moments-player/internal/eventloop"
	"github.com/orgball2608/moments-player/internal/pool"
	"github.com/orgball2608/moments-player/internal/ratelimit"
	"github.com/orgball2608/moments-player/internal/repositories/like"
	"github.com/orgball2608/moments-player/pkg/config"
	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/orgball2608/moments-player/pkg/retry"
	"go.uber.org/fx"
)

type Deps struct {
	fx.In

	Loop    *eventloop.Loop
	Factory decoder.Factory
	Runner  pool.Runner       `optional:"true"`
	Likes   like.Repository   `optional:"true"`
	Limiter ratelimit.Limiter `optional:"true"`
	Config  *config.Config
	Logger  logger.Logger
}

func (d Deps) likeRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = d.Config.Likes.Retries
	return cfg
}
