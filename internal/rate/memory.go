package rate

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter keeps counters in process memory. Counts are per process,
// which suits single-instance deployments and local development.
type MemoryLimiter struct {
	c   *gocache.Cache
	now func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		c:   gocache.New(time.Minute, time.Minute),
		now: time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (l *MemoryLimiter) WithClock(now func() time.Time) *MemoryLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, policy Policy, key string) (Result, error) {
	if !policy.valid() {
		return Result{}, ErrInvalidPolicy
	}
	now := l.now()
	start := windowStart(now, policy.Window)
	cacheKey := policy.Name + ":" + sanitizeKey(key) + ":" + strconv.FormatInt(start.Unix(), 10)

	hits, err := l.c.IncrementInt64(cacheKey, 1)
	if err != nil {
		// First hit in this window. A concurrent Add may win; the increment
		// below then lands on its counter.
		_ = l.c.Add(cacheKey, int64(0), policy.Window+time.Second)
		hits, err = l.c.IncrementInt64(cacheKey, 1)
		if err != nil {
			return Result{}, err
		}
	}
	return result(policy, hits, now, start), nil
}
