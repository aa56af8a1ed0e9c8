// Package workers builds the bounded goroutine pools that background work
// runs on. Submit never blocks: a full pool rejects with ants.ErrPoolOverload.
package workers

import (
	"fmt"

	"github.com/orgball2608/moments-player/pkg/logger"
	"github.com/panjf2000/ants/v2"
)

func New(size int, name string, log logger.Logger) (*ants.Pool, error) {
	log = log.WithComponent(name)

	pool, err := ants.NewPool(size,
		ants.WithPreAlloc(true),
		ants.WithNonblocking(true),
		ants.WithLogger(log),
		ants.WithPanicHandler(func(r any) {
			log.Error("Panic recovered in worker", "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s pool: %w", name, err)
	}
	return pool, nil
}
