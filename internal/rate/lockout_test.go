package rate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func lockouts(t *testing.T, cfg LockoutConfig) map[string]FailureCounter {
	_, rdb := newTestRedis(t)
	return map[string]FailureCounter{
		"redis":  NewRedisLockout(rdb, "test", cfg),
		"memory": NewMemoryLockout(cfg),
	}
}

func TestLockoutReachesThreshold(t *testing.T) {
	cfg := LockoutConfig{Enabled: true, Threshold: 3, Window: time.Hour}
	for name, l := range lockouts(t, cfg) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 1; i < cfg.Threshold; i++ {
				reached, err := l.RecordFailure(ctx, "u1")
				if err != nil || reached {
					t.Fatalf("failure %d: reached=%v err=%v", i, reached, err)
				}
			}
			reached, err := l.RecordFailure(ctx, "u1")
			if err != nil || !reached {
				t.Fatalf("threshold failure: reached=%v err=%v", reached, err)
			}
			if n, _ := l.Failures(ctx, "u1"); n != cfg.Threshold {
				t.Fatalf("expected %d failures, got %d", cfg.Threshold, n)
			}
			if n, _ := l.Failures(ctx, "u2"); n != 0 {
				t.Fatalf("other users must not be counted, got %d", n)
			}
		})
	}
}

func TestLockoutResetClearsCount(t *testing.T) {
	cfg := LockoutConfig{Enabled: true, Threshold: 2}
	for name, l := range lockouts(t, cfg) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if _, err := l.RecordFailure(ctx, "u1"); err != nil {
				t.Fatalf("RecordFailure: %v", err)
			}
			if err := l.Reset(ctx, "u1"); err != nil {
				t.Fatalf("Reset: %v", err)
			}
			reached, err := l.RecordFailure(ctx, "u1")
			if err != nil || reached {
				t.Fatalf("count should restart after reset: reached=%v err=%v", reached, err)
			}
		})
	}
}

func TestLockoutDisabledNeverTrips(t *testing.T) {
	for name, l := range lockouts(t, LockoutConfig{Threshold: 1}) {
		t.Run(name, func(t *testing.T) {
			reached, err := l.RecordFailure(context.Background(), "u1")
			if err != nil || reached {
				t.Fatalf("disabled lockout tripped: reached=%v err=%v", reached, err)
			}
		})
	}
}

func TestRedisLockoutWindowExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedisLockout(rdb, "salo", LockoutConfig{Enabled: true, Threshold: 2, Window: 10 * time.Minute})
	ctx := context.Background()

	if _, err := l.RecordFailure(ctx, "u1"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if ttl := mr.TTL("salo:u1"); ttl <= 0 || ttl > 10*time.Minute {
		t.Fatalf("unexpected ttl %s", ttl)
	}
	mr.FastForward(11 * time.Minute)

	reached, err := l.RecordFailure(ctx, "u1")
	if err != nil || reached {
		t.Fatalf("expired failures must not count: reached=%v err=%v", reached, err)
	}
}

func TestRedisLockoutBackendDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	l := NewRedisLockout(rdb, "", LockoutConfig{Enabled: true, Threshold: 2})
	_, err := l.RecordFailure(context.Background(), "u1")
	if !errors.Is(err, ErrLockoutUnavailable) {
		t.Fatalf("expected ErrLockoutUnavailable, got %v", err)
	}
}
