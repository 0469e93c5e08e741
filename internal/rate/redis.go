package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter shared by every process that
// points at the same Redis: INCR on a key per window, EXPIRE on first hit.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "srl"
	}
	return &RedisLimiter{redis: client, prefix: prefix, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (l *RedisLimiter) WithClock(now func() time.Time) *RedisLimiter {
	if now != nil {
		l.now = now
	}
	return l
}

func (l *RedisLimiter) Allow(ctx context.Context, policy Policy, key string) (Result, error) {
	if !policy.valid() {
		return Result{}, ErrInvalidPolicy
	}
	now := l.now()
	start := windowStart(now, policy.Window)
	redisKey := l.prefix + ":" + policy.Name + ":" + sanitizeKey(key) + ":" + strconv.FormatInt(start.Unix(), 10)

	hits, err := l.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if hits == 1 {
		// One extra second keeps the key alive across clock skew between processes.
		if err := l.redis.Expire(ctx, redisKey, policy.Window+time.Second).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	return result(policy, hits, now, start), nil
}
