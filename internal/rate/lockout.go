package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// LockoutConfig holds the automatic account lockout settings.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	// Window is how long failures are remembered. 0 keeps them until Reset.
	Window time.Duration
}

// ErrLockoutUnavailable indicates the failure counter store is unreachable.
var ErrLockoutUnavailable = errors.New("lockout backend unavailable")

// FailureCounter tracks consecutive failed logins per user. RecordFailure
// reports true once the threshold is reached; the caller locks the account.
type FailureCounter interface {
	RecordFailure(ctx context.Context, userID string) (bool, error)
	Reset(ctx context.Context, userID string) error
	Failures(ctx context.Context, userID string) (int, error)
}

// RedisLockout keeps failure counters in Redis so every process sees the
// same count.
type RedisLockout struct {
	redis  redis.UniversalClient
	prefix string
	config LockoutConfig
}

func NewRedisLockout(client redis.UniversalClient, prefix string, cfg LockoutConfig) *RedisLockout {
	if prefix == "" {
		prefix = "salo"
	}
	return &RedisLockout{redis: client, prefix: prefix, config: cfg}
}

func (l *RedisLockout) key(userID string) string {
	return l.prefix + ":" + sanitizeKey(userID)
}

func (l *RedisLockout) RecordFailure(ctx context.Context, userID string) (bool, error) {
	if !l.config.Enabled || userID == "" {
		return false, nil
	}

	count, err := l.redis.Incr(ctx, l.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	if count == 1 && l.config.Window > 0 {
		if err := l.redis.Expire(ctx, l.key(userID), l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}
	return count >= int64(l.config.Threshold), nil
}

func (l *RedisLockout) Reset(ctx context.Context, userID string) error {
	if !l.config.Enabled || userID == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return nil
}

func (l *RedisLockout) Failures(ctx context.Context, userID string) (int, error) {
	if !l.config.Enabled || userID == "" {
		return 0, nil
	}
	count, err := l.redis.Get(ctx, l.key(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
	}
	return int(count), nil
}

// MemoryLockout is the per-process counterpart of RedisLockout, used with
// the memory rate backend.
type MemoryLockout struct {
	c      *gocache.Cache
	config LockoutConfig
}

func NewMemoryLockout(cfg LockoutConfig) *MemoryLockout {
	return &MemoryLockout{
		c:      gocache.New(gocache.NoExpiration, time.Minute),
		config: cfg,
	}
}

func (l *MemoryLockout) RecordFailure(_ context.Context, userID string) (bool, error) {
	if !l.config.Enabled || userID == "" {
		return false, nil
	}

	expiry := gocache.NoExpiration
	if l.config.Window > 0 {
		expiry = l.config.Window
	}
	count, err := l.c.IncrementInt64(userID, 1)
	if err != nil {
		_ = l.c.Add(userID, int64(0), expiry)
		count, err = l.c.IncrementInt64(userID, 1)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrLockoutUnavailable, err)
		}
	}
	return count >= int64(l.config.Threshold), nil
}

func (l *MemoryLockout) Reset(_ context.Context, userID string) error {
	if l.config.Enabled && userID != "" {
		l.c.Delete(userID)
	}
	return nil
}

func (l *MemoryLockout) Failures(_ context.Context, userID string) (int, error) {
	if !l.config.Enabled || userID == "" {
		return 0, nil
	}
	if v, ok := l.c.Get(userID); ok {
		if n, ok := v.(int64); ok {
			return int(n), nil
		}
	}
	return 0, nil
}
