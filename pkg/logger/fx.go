package logger

import (
	"os"

	"github.com/orgball2608/moments-player/pkg/config"
	"go.uber.org/fx"
)

var FxOption = fx.Annotate(
	func(cfg *config.Config) *Impl {
		opts := Opts{
			Env:       cfg.App.Env,
			Level:     cfg.App.LogLevel,
			SentryDSN: cfg.App.SentryUrl,
		}

		// The terminal host owns stdout/stderr, so records go to a file when configured.
		if cfg.App.LogFile != "" {
			f, err := os.OpenFile(cfg.App.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				opts.Writer = f
			}
		}

		return New(opts)
	},
	fx.As(new(Logger)),
)
