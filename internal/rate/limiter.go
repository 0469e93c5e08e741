package rate

import (
	"context"
	"strings"
	"time"
)

// Policy is a named fixed-window ceiling.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p Policy) valid() bool {
	return p.Limit > 0 && p.Window > 0
}

// Result is the outcome of one counted hit.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter counts one hit for key under policy and reports whether it is
// within the ceiling. Counts are approximate under concurrency: a burst may
// briefly overshoot, never undercount.
type Limiter interface {
	Allow(ctx context.Context, policy Policy, key string) (Result, error)
}

// windowStart truncates now to the policy window so every process agrees on
// the current bucket without coordination.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.UTC().Truncate(window)
}

func sanitizeKey(key string) string {
	return strings.NewReplacer(" ", "_", "\n", "_", "\r", "_").Replace(key)
}

func result(policy Policy, hits int64, now, start time.Time) Result {
	limit := int64(policy.Limit)
	remaining := limit - hits
	if remaining < 0 {
		remaining = 0
	}
	ttl := start.Add(policy.Window).Sub(now)
	if ttl <= 0 {
		ttl = time.Second
	}
	res := Result{
		Allowed:     hits <= limit,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}
