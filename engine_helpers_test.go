package skyAuth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/skyAuth/password"
)

const testPassword = "correct-password-123"

type mockUserProvider struct {
	mu           sync.Mutex
	users        map[string]UserRecord
	byIdentifier map[string]string

	getErr            error
	updatePasswordErr error

	getByIdentifierCalls int
	getByIDCalls         int
	updatePasswordCalls  int
}

func newMockUserProvider() *mockUserProvider {
	return &mockUserProvider{
		users:        map[string]UserRecord{},
		byIdentifier: map[string]string{},
	}
}

func (m *mockUserProvider) add(u UserRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserID] = u
	m.byIdentifier[strings.ToLower(u.Identifier)] = u.UserID
}

func (m *mockUserProvider) user(id string) UserRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.SecondFactor = u.SecondFactor.Clone()
	return u
}

func (m *mockUserProvider) GetUserByIdentifier(_ context.Context, identifier string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIdentifierCalls++
	if m.getErr != nil {
		return UserRecord{}, m.getErr
	}
	id, ok := m.byIdentifier[identifier]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	u := m.users[id]
	u.SecondFactor = u.SecondFactor.Clone()
	return u, nil
}

func (m *mockUserProvider) GetUserByID(_ context.Context, userID string) (UserRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getByIDCalls++
	if m.getErr != nil {
		return UserRecord{}, m.getErr
	}
	u, ok := m.users[userID]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	u.SecondFactor = u.SecondFactor.Clone()
	return u, nil
}

func (m *mockUserProvider) ConditionalUpdateSecondFactor(_ context.Context, userID string, expectedVersion uint32, next SecondFactor) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	if u.SecondFactor.Version != expectedVersion {
		return false, nil
	}
	next = next.Clone()
	next.Version = expectedVersion + 1
	u.SecondFactor = next
	m.users[userID] = u
	return true, nil
}

func (m *mockUserProvider) ConsumeBackupCode(_ context.Context, userID string, codeHash [32]byte, usedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return false, ErrUserNotFound
	}
	for i := range u.SecondFactor.BackupCodes {
		c := &u.SecondFactor.BackupCodes[i]
		if !c.Used && c.Hash == codeHash {
			c.Used = true
			c.UsedAt = usedAt
			return true, nil
		}
	}
	return false, nil
}

func (m *mockUserProvider) UpdatePasswordHash(_ context.Context, userID string, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatePasswordCalls++
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PasswordHash = newHash
	m.users[userID] = u
	return nil
}

func (m *mockUserProvider) UpdateAccountStatus(_ context.Context, userID string, status AccountStatus, locked bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.Status = status
	u.Locked = locked
	m.users[userID] = u
	return nil
}

func (m *mockUserProvider) IncrementTokenVersion(_ context.Context, userID string) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	u.TokenVersion++
	m.users[userID] = u
	return u.TokenVersion, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.UpgradeOnLogin = true
	return cfg
}

func testHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

type testEnv struct {
	engine *Engine
	users  *mockUserProvider
	clock  *testClock
	redis  *miniredis.Miniredis
}

func newTestEnv(t *testing.T, cfg Config, sink AuditSink) *testEnv {
	t.Helper()
	users := newMockUserProvider()
	return newTestEnvWithProvider(t, cfg, sink, users, users)
}

// newTestEnvWithProvider builds the engine on provider, which wraps users.
func newTestEnvWithProvider(t *testing.T, cfg Config, sink AuditSink, users *mockUserProvider, provider UserProvider) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clock := newTestClock()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(provider).
		WithAuditSink(sink).
		WithClock(clock.Now).
		Build()
	if err != nil {
		_ = rdb.Close()
		mr.Close()
		t.Fatalf("Build: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &testEnv{engine: engine, users: users, clock: clock, redis: mr}
}

// seedUser adds an active user with testPassword.
func (env *testEnv) seedUser(t *testing.T, id, identifier string, roles ...string) {
	t.Helper()
	hash, err := env.engine.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	env.users.add(UserRecord{
		UserID:       id,
		Identifier:   identifier,
		PasswordHash: hash,
		Status:       AccountActive,
		Roles:        roles,
	})
}

// enroll runs begin and confirm for userID and returns the secret and the
// plaintext backup codes.
func (env *testEnv) enroll(t *testing.T, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()
	setup, err := env.engine.BeginTwoFactorSetup(ctx, userID)
	if err != nil {
		t.Fatalf("BeginTwoFactorSetup: %v", err)
	}
	if err := env.engine.ConfirmTwoFactorSetup(ctx, userID, env.code(t, setup.Secret, 0)); err != nil {
		t.Fatalf("ConfirmTwoFactorSetup: %v", err)
	}
	return setup.Secret, setup.BackupCodes
}

// code returns the TOTP code for secret at the test clock shifted by steps.
func (env *testEnv) code(t *testing.T, secret string, steps int) string {
	t.Helper()
	at := env.clock.Now().Add(time.Duration(steps) * 30 * time.Second)
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}

// wrongCode returns a well-formed code that does not verify at the clock.
func (env *testEnv) wrongCode(t *testing.T, secret string) string {
	t.Helper()
	valid := map[string]bool{}
	for s := -1; s <= 1; s++ {
		valid[env.code(t, secret, s)] = true
	}
	for _, c := range []string{"000000", "111111", "222222", "333333"} {
		if !valid[c] {
			return c
		}
	}
	t.Fatal("no invalid code available")
	return ""
}

func withIP(ip string) context.Context {
	return WithClientIP(context.Background(), ip)
}

func mustLoginChallenge(t *testing.T, env *testEnv, identifier string) *LoginResult {
	t.Helper()
	res, err := env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: identifier, Password: testPassword})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.RequiresTwoFactor || res.TempToken == "" || res.Tokens != nil {
		t.Fatalf("expected a pending challenge, got %+v", res)
	}
	return res
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}
