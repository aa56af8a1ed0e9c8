// Package cleanup removes ephemeral stories once they outlive their TTL.
package cleanup

import "context"

type Client interface {
	// RunOnce deletes expired stories and returns how many were removed.
	RunOnce(ctx context.Context) (int64, error)

	// Schedule runs RunOnce periodically until ctx is done.
	Schedule(ctx context.Context) error
}
