package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles actions per user.
type Limiter interface {
	Allow(userID string) bool
	Wait(ctx context.Context, userID string) error
}

// InMemoryLimiter keeps one token bucket per user in memory.
type InMemoryLimiter struct {
	users map[string]*rate.Limiter
	mu    sync.Mutex
	r     rate.Limit
	b     int
}

var _ Limiter = (*InMemoryLimiter)(nil)

// NewInMemoryLimiter creates a new rate limiter
// Example: NewInMemoryLimiter(1, 500*time.Millisecond, 3) -> one like every 500ms, burst of 3
func NewInMemoryLimiter(requests int, per time.Duration, burst int) *InMemoryLimiter {
	if requests <= 0 {
		requests = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &InMemoryLimiter{
		users: make(map[string]*rate.Limiter),
		r:     rate.Every(per / time.Duration(requests)),
		b:     burst,
	}
}

func (l *InMemoryLimiter) limiter(userID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, exists := l.users[userID]
	if !exists {
		limiter = rate.NewLimiter(l.r, l.b)
		l.users[userID] = limiter
	}
	return limiter
}

// Allow reports whether userID may act now, consuming a token if so.
func (l *InMemoryLimiter) Allow(userID string) bool {
	return l.limiter(userID).Allow()
}

// Wait blocks until userID may act or ctx is done.
func (l *InMemoryLimiter) Wait(ctx context.Context, userID string) error {
	return l.limiter(userID).Wait(ctx)
}
