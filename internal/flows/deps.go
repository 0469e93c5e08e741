package flows

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/skyAuth/internal/stores"
)

// AuditFunc records one security event. meta is evaluated lazily.
type AuditFunc func(ctx context.Context, kind string, success bool, userID string, err error, meta func() map[string]string)

// MetricIDs maps flow outcomes to the engine's counter ids.
type MetricIDs struct {
	LoginSuccess           int
	LoginFailure           int
	ChallengeIssued        int
	TwoFactorLoginSuccess  int
	TwoFactorLoginFailure  int
	ChallengeExhausted     int
	TwoFactorEnabled       int
	TwoFactorDisabled      int
	TOTPFailure            int
	BackupCodeUsed         int
	BackupCodeFailed       int
	BackupCodesRegenerated int
	StepUpFailure          int
	RefreshSuccess         int
	RefreshFailure         int
	TokenVersionMismatch   int
	PasswordChanged        int
	AccountStatusChanged   int
	TokensRevoked          int
	AccountAutoLocked      int
}

// Core is shared by every flow. The engine builds it once.
type Core struct {
	Store     UserStore
	Now       func() time.Time
	Audit     AuditFunc
	MetricInc func(int)
	Metrics   MetricIDs
	Log       *zap.Logger
	// Lockout is nil when automatic lockout is disabled.
	Lockout FailureCounter
}

func (c *Core) normalize() {
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Audit == nil {
		c.Audit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if c.MetricInc == nil {
		c.MetricInc = func(int) {}
	}
	if c.Log == nil {
		c.Log = zap.NewNop()
	}
}

// FailureCounter counts consecutive wrong passwords per user. RecordFailure
// reports true once the lockout threshold is reached.
type FailureCounter interface {
	RecordFailure(ctx context.Context, userID string) (bool, error)
	Reset(ctx context.Context, userID string) error
}

// ChallengeStore persists pending second-factor challenges.
type ChallengeStore interface {
	Save(ctx context.Context, id string, record *stores.Challenge, ttl time.Duration) error
	Get(ctx context.Context, id string, secretHash [32]byte) (*stores.Challenge, error)
	Consume(ctx context.Context, id string) (bool, error)
	RecordFailure(ctx context.Context, id string, maxAttempts int) (bool, error)
}

// RateCheck consumes one hit of policy under key. It returns a
// *RateLimitError when the ceiling is reached and ErrRateLimitUnavailable
// when the counter store cannot be reached.
type RateCheck func(ctx context.Context, policy, key string) error

// TokenIssuer mints a session pair for u.
type TokenIssuer func(ctx context.Context, u User, rememberMe bool) (TokenPair, error)

// TOTP generates and verifies authenticator secrets.
type TOTP interface {
	Generate(account string) (secret, uri string, err error)
	Verify(secret, code string, now time.Time) (bool, error)
}

// PasswordHasher hashes and verifies account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
	NeedsUpgrade(encoded string) bool
}
