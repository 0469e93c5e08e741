package skyAuth

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestLoginWithoutSecondFactorIssuesPair(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	env.seedUser(t, "u1", "alice@sky.example", "passenger")

	res, err := env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "  Alice@Sky.example ", Password: testPassword})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.RequiresTwoFactor || res.Tokens == nil || res.User == nil {
		t.Fatalf("expected a session pair, got %+v", res)
	}
	if res.User.UserID != "u1" || res.User.TwoFactorEnabled {
		t.Fatalf("unexpected profile %+v", res.User)
	}
	if res.Tokens.ExpiresIn != 15*time.Minute {
		t.Fatalf("expected 15m access lifetime, got %s", res.Tokens.ExpiresIn)
	}

	auth, err := env.engine.Validate(context.Background(), res.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if auth.UserID != "u1" || !auth.HasRole("passenger") {
		t.Fatalf("unexpected auth result %+v", auth)
	}
}

func TestLoginUnknownAndWrongPasswordLookAlike(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	env.seedUser(t, "u1", "alice@sky.example")

	_, errUnknown := env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "nobody@sky.example", Password: testPassword})
	_, errWrong := env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "alice@sky.example", Password: "wrong-password"})

	expectErr(t, errUnknown, ErrInvalidCredentials)
	expectErr(t, errWrong, ErrInvalidCredentials)
	if errUnknown.Error() != errWrong.Error() {
		t.Fatalf("messages differ: %q vs %q", errUnknown, errWrong)
	}
	if errors.Is(errUnknown, ErrUserNotFound) {
		t.Fatal("login must not surface ErrUserNotFound")
	}
}

func TestLoginStatusChecksRunAfterPassword(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	env.seedUser(t, "u1", "locked@sky.example")
	env.seedUser(t, "u2", "inactive@sky.example")
	env.seedUser(t, "u3", "both@sky.example")
	ctx := context.Background()

	if err := env.users.UpdateAccountStatus(ctx, "u1", AccountActive, true); err != nil {
		t.Fatal(err)
	}
	if err := env.users.UpdateAccountStatus(ctx, "u2", AccountInactive, false); err != nil {
		t.Fatal(err)
	}
	if err := env.users.UpdateAccountStatus(ctx, "u3", AccountInactive, true); err != nil {
		t.Fatal(err)
	}

	_, err := env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "locked@sky.example", Password: "wrong"})
	expectErr(t, err, ErrInvalidCredentials)

	_, err = env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "locked@sky.example", Password: testPassword})
	expectErr(t, err, ErrAccountLocked)

	_, err = env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "inactive@sky.example", Password: testPassword})
	expectErr(t, err, ErrAccountInactive)

	_, err = env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "both@sky.example", Password: testPassword})
	expectErr(t, err, ErrAccountLocked)
}

// Six attempts inside the window: the sixth is refused even though its
// credentials are correct, and the store is never consulted for it.
func TestLoginRateLimitedRegardlessOfCredentials(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	env.seedUser(t, "u1", "alice@sky.example")
	ctx := withIP("203.0.113.9")

	for i := 0; i < 5; i++ {
		_, err := env.engine.Login(ctx, LoginRequest{Identifier: "alice@sky.example", Password: "wrong-password"})
		expectErr(t, err, ErrInvalidCredentials)
	}
	lookups := env.users.getByIdentifierCalls

	_, err := env.engine.Login(ctx, LoginRequest{Identifier: "alice@sky.example", Password: testPassword})
	expectErr(t, err, ErrRateLimited)
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.Policy != PolicyAuth || rl.RetryAfter <= 0 {
		t.Fatalf("expected auth RateLimitError with retry hint, got %#v", err)
	}
	if env.users.getByIdentifierCalls != lookups {
		t.Fatal("rate-limited attempt reached the credential store")
	}

	// Another client is unaffected.
	if _, err := env.engine.Login(withIP("198.51.100.7"), LoginRequest{Identifier: "alice@sky.example", Password: testPassword}); err != nil {
		t.Fatalf("other client: %v", err)
	}

	env.clock.Advance(16 * time.Minute)
	if _, err := env.engine.Login(ctx, LoginRequest{Identifier: "alice@sky.example", Password: testPassword}); err != nil {
		t.Fatalf("after window: %v", err)
	}
}

func TestLoginRateLimitBackendDownFailsClosed(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	env.seedUser(t, "u1", "alice@sky.example")
	env.redis.Close()

	_, err := env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "alice@sky.example", Password: testPassword})
	expectErr(t, err, ErrRateLimitUnavailable)
	if got := env.engine.MetricsSnapshot().Counters[MetricRateLimitBackendError]; got != 1 {
		t.Fatalf("expected backend error metric, got %d", got)
	}

	if err := env.engine.CheckRate(context.Background(), PolicyGeneral, "ip:10.0.0.1"); err != nil {
		t.Fatalf("general policy should fail open, got %v", err)
	}
}

func TestLoginAdminRequiresRole(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	env.seedUser(t, "u1", "crew@sky.example", "crew")
	env.seedUser(t, "u2", "ops@sky.example", "admin")

	_, err := env.engine.LoginAdmin(withIP("10.0.0.1"), LoginRequest{Identifier: "crew@sky.example", Password: testPassword})
	expectErr(t, err, ErrInvalidCredentials)

	res, err := env.engine.LoginAdmin(withIP("10.0.0.1"), LoginRequest{Identifier: "ops@sky.example", Password: testPassword})
	if err != nil || res.Tokens == nil {
		t.Fatalf("LoginAdmin: %v", err)
	}
}

func TestLoginAdminPolicyIsTighter(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	env.seedUser(t, "u2", "ops@sky.example", "admin")
	ctx := withIP("10.0.0.1")

	for i := 0; i < 3; i++ {
		_, _ = env.engine.LoginAdmin(ctx, LoginRequest{Identifier: "ops@sky.example", Password: "nope"})
	}
	_, err := env.engine.LoginAdmin(ctx, LoginRequest{Identifier: "ops@sky.example", Password: testPassword})
	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.Policy != PolicyAdminAuth {
		t.Fatalf("expected admin_auth RateLimitError, got %v", err)
	}
}

func TestLoginUpgradesLegacyBcryptHash(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	env.users.add(UserRecord{UserID: "u1", Identifier: "legacy@sky.example", PasswordHash: string(legacy), Status: AccountActive})

	if _, err := env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "legacy@sky.example", Password: testPassword}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	stored := env.users.user("u1").PasswordHash
	if stored == string(legacy) || stored[:9] != "$argon2id" {
		t.Fatalf("expected argon2id rehash, got %q", stored)
	}
	if _, err := env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "legacy@sky.example", Password: testPassword}); err != nil {
		t.Fatalf("Login after upgrade: %v", err)
	}
}

func TestLoginSucceedsWhenHashUpgradeFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	sink := NewChannelSink(64)
	env := newTestEnv(t, cfg, sink)
	legacy, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	env.users.add(UserRecord{UserID: "u1", Identifier: "legacy@sky.example", PasswordHash: string(legacy), Status: AccountActive})
	env.users.updatePasswordErr = errors.New("read-only replica")

	res, err := env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "legacy@sky.example", Password: testPassword})
	if err != nil || res.Tokens == nil {
		t.Fatalf("login must not depend on the rehash write: res=%+v err=%v", res, err)
	}
	if env.users.user("u1").PasswordHash != string(legacy) {
		t.Fatal("stored hash should be unchanged")
	}

	var rehash *AuditEvent
	events := drainEvents(env, sink)
	for i := range events {
		if events[i].Kind == AuditEventPasswordRehash {
			rehash = &events[i]
		}
	}
	if rehash == nil || rehash.Success || rehash.Error != "backend_unavailable" {
		t.Fatalf("expected a failed rehash event, got %+v", rehash)
	}
}

func TestLoginStoreFailureIsUnavailable(t *testing.T) {
	env := newTestEnv(t, testConfig(t), nil)
	env.users.getErr = errors.New("connection refused")

	_, err := env.engine.Login(withIP("10.0.0.1"), LoginRequest{Identifier: "alice@sky.example", Password: testPassword})
	expectErr(t, err, ErrStoreUnavailable)
}
