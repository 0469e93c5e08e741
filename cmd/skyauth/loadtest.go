package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	mrand "math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/store/memory"
)

type loadtestFlags struct {
	users       int
	concurrency int
	ops         int
	redisAddr   string
}

// newLoadtestCmd measures Validate and Refresh throughput against an
// in-process engine backed by the memory store.
func newLoadtestCmd() *cobra.Command {
	f := &loadtestFlags{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure in-process validate and refresh throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.users <= 0 || f.concurrency <= 0 || f.ops <= 0 {
				return fmt.Errorf("users, concurrency and ops must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), *f)
		},
	}
	cmd.Flags().IntVar(&f.users, "users", 200, "number of users to seed and log in")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 64, "number of concurrent workers")
	cmd.Flags().IntVar(&f.ops, "ops", 50000, "operations per phase")
	cmd.Flags().StringVar(&f.redisAddr, "redis-addr", "", "redis address; miniredis is used when empty")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, f loadtestFlags) error {
	var client redis.UniversalClient
	if f.redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		f.redisAddr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", f.redisAddr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", f.redisAddr)
	}
	client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{f.redisAddr}})
	defer client.Close()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	cfg := skyAuth.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.RateLimit.Backend = "memory"
	cfg.Metrics.EnableLatencyHistograms = true

	users := memory.New()
	engine, err := skyAuth.New().WithConfig(cfg).WithRedis(client).WithUserProvider(users).Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	const pw = "loadtest-password"
	hash, err := engine.HashPassword(pw)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "seeding %d users...\n", f.users)
	start := time.Now()
	pairs := make([]skyAuth.TokenPair, f.users)
	for i := range pairs {
		ident := fmt.Sprintf("crew-%d@loadtest.local", i)
		if _, err := users.AddUser(skyAuth.UserRecord{Identifier: ident, PasswordHash: hash, Roles: []string{"crew"}}); err != nil {
			return err
		}
		lctx := skyAuth.WithClientIP(ctx, fmt.Sprintf("10.0.%d.%d", i/250, i%250))
		res, err := engine.Login(lctx, skyAuth.LoginRequest{Identifier: ident, Password: pw})
		if err != nil {
			return fmt.Errorf("login %s: %w", ident, err)
		}
		pairs[i] = *res.Tokens
	}
	fmt.Fprintf(out, "seeded in %s\n", time.Since(start).Round(time.Millisecond))

	validate := runPhase(f.ops, f.concurrency, func(r *mrand.Rand) error {
		_, err := engine.Validate(ctx, pairs[r.Intn(len(pairs))].AccessToken)
		return err
	})
	refresh := runPhase(f.ops, f.concurrency, func(r *mrand.Rand) error {
		_, err := engine.Refresh(ctx, pairs[r.Intn(len(pairs))].RefreshToken)
		return err
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "validate", validate)
	printStats(out, "refresh", refresh)
	return nil
}

func runPhase(ops, concurrency int, op func(r *mrand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				if int(atomic.AddInt64(&cursor, 1)) > ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
