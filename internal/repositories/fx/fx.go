package fx

import (
	"github.com/orgball2608/moments-player/internal/repositories/feed"
	"github.com/orgball2608/moments-player/internal/repositories/like"
	"github.com/orgball2608/moments-player/internal/repositories/story"
	"go.uber.org/fx"
)

var Module = fx.Options(
	story.Module,
	feed.Module,
	like.Module,
)
