package test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/store/memory"
)

const crewPassword = "runway-27-left-clear"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	engine *skyAuth.Engine
	users  *memory.Store
	clock  *clock
	sink   *skyAuth.ChannelSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	cfg := skyAuth.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	h := &harness{
		users: memory.New(),
		clock: &clock{now: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)},
		sink:  skyAuth.NewChannelSink(256),
	}
	h.engine, err = skyAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(h.users).
		WithAuditSink(h.sink).
		WithClock(h.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(h.engine.Close)
	return h
}

func (h *harness) addCrew(t *testing.T, identifier string, roles ...string) string {
	t.Helper()
	hash, err := h.engine.HashPassword(crewPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	id, err := h.users.AddUser(skyAuth.UserRecord{
		Identifier:   identifier,
		DisplayName:  "Crew " + identifier,
		PasswordHash: hash,
		Roles:        roles,
	})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	return id
}

func (h *harness) code(t *testing.T, secret string) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, h.clock.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}

// enroll activates the second factor and returns the secret and backup codes.
func (h *harness) enroll(t *testing.T, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()
	setup, err := h.engine.BeginTwoFactorSetup(ctx, userID)
	if err != nil {
		t.Fatalf("BeginTwoFactorSetup: %v", err)
	}
	if err := h.engine.ConfirmTwoFactorSetup(ctx, userID, h.code(t, setup.Secret)); err != nil {
		t.Fatalf("ConfirmTwoFactorSetup: %v", err)
	}
	return setup.Secret, setup.BackupCodes
}

func fromIP(ip string) context.Context {
	return skyAuth.WithClientIP(context.Background(), ip)
}
