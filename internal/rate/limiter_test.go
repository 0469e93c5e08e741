package rate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var authPolicy = Policy{Name: "auth", Limit: 5, Window: 15 * time.Minute}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return mr, rdb
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func limiters(t *testing.T, clk *clock) map[string]Limiter {
	_, rdb := newTestRedis(t)
	return map[string]Limiter{
		"redis":  NewRedisLimiter(rdb, "test").WithClock(clk.Now),
		"memory": NewMemoryLimiter().WithClock(clk.Now),
	}
}

func TestLimiterBlocksAfterCeiling(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)}
	for name, l := range limiters(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i <= 5; i++ {
				res, err := l.Allow(ctx, authPolicy, "10.0.0.1|alice")
				if err != nil {
					t.Fatalf("attempt %d: %v", i, err)
				}
				if !res.Allowed {
					t.Fatalf("attempt %d should be allowed", i)
				}
				if res.Remaining != int64(5-i) {
					t.Fatalf("attempt %d: remaining %d", i, res.Remaining)
				}
			}
			res, err := l.Allow(ctx, authPolicy, "10.0.0.1|alice")
			if err != nil {
				t.Fatalf("sixth attempt: %v", err)
			}
			if res.Allowed {
				t.Fatal("sixth attempt must be blocked")
			}
			// Window started at 10:00, so 10 minutes remain.
			if res.RetryAfter != 10*time.Minute {
				t.Fatalf("unexpected retry after %s", res.RetryAfter)
			}
		})
	}
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	for name, l := range limiters(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 6; i++ {
				_, _ = l.Allow(ctx, authPolicy, "a")
			}
			res, err := l.Allow(ctx, authPolicy, "b")
			if err != nil || !res.Allowed {
				t.Fatalf("other key must be unaffected: %+v %v", res, err)
			}
			general := Policy{Name: "general", Limit: 100, Window: time.Minute}
			res, err = l.Allow(ctx, general, "a")
			if err != nil || !res.Allowed {
				t.Fatalf("other policy must be unaffected: %+v %v", res, err)
			}
		})
	}
}

func TestLimiterResetsOnWindowRollover(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 14, 0, 0, time.UTC)}
	for name, l := range limiters(t, clk) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 6; i++ {
				_, _ = l.Allow(ctx, authPolicy, "k")
			}
			clk.Advance(2 * time.Minute)
			res, err := l.Allow(ctx, authPolicy, "k")
			if err != nil || !res.Allowed || res.CurrentHits != 1 {
				t.Fatalf("expected fresh window: %+v %v", res, err)
			}
			clk.Advance(-2 * time.Minute)
		})
	}
}

func TestLimiterRejectsInvalidPolicy(t *testing.T) {
	clk := &clock{t: time.Now()}
	for name, l := range limiters(t, clk) {
		t.Run(name, func(t *testing.T) {
			_, err := l.Allow(context.Background(), Policy{Name: "x"}, "k")
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Fatalf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestRedisLimiterSetsExpiry(t *testing.T) {
	mr, rdb := newTestRedis(t)
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	l := NewRedisLimiter(rdb, "srl").WithClock(clk.Now)
	if _, err := l.Allow(context.Background(), authPolicy, "k"); err != nil {
		t.Fatalf("allow: %v", err)
	}
	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("expected one counter key, got %v", keys)
	}
	if ttl := mr.TTL(keys[0]); ttl <= 0 || ttl > authPolicy.Window+time.Second {
		t.Fatalf("unexpected ttl %s", ttl)
	}
}

func TestRedisLimiterBackendDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	l := NewRedisLimiter(rdb, "")
	_, err := l.Allow(context.Background(), authPolicy, "k")
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestLimiterConcurrentHitsNeverUndercount(t *testing.T) {
	clk := &clock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	for name, l := range limiters(t, clk) {
		t.Run(name, func(t *testing.T) {
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				allowed int
			)
			for i := 0; i < 40; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					res, err := l.Allow(context.Background(), authPolicy, "burst")
					if err == nil && res.Allowed {
						mu.Lock()
						allowed++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if allowed != authPolicy.Limit {
				t.Fatalf("expected exactly %d allowed, got %d", authPolicy.Limit, allowed)
			}
		})
	}
}
