package skyAuth

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete engine configuration. Start from DefaultConfig or
// HighSecurityConfig and adjust fields before passing it to the Builder.
type Config struct {
	JWT       JWTConfig
	Tokens    TokenConfig
	Password  PasswordConfig
	TwoFactor TwoFactorConfig
	RateLimit RateLimitConfig
	Security  SecurityConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds signing material. SigningMethod is "ed25519" or "hs256".
type JWTConfig struct {
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
	VerifyKeys    map[string][]byte
	Leeway        time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig holds session pair lifetimes.
type TokenConfig struct {
	AccessTTL time.Duration
	// RefreshTTL applies to logins without remember-me.
	RefreshTTL time.Duration
	// RememberMeRefreshTTL applies when the login asked to be remembered.
	RememberMeRefreshTTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters and the password policy.
type PasswordConfig struct {
	Memory           uint32
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	MinLength        int
	UpgradeOnLogin   bool
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig controls TOTP parameters, backup codes and the pending
// login challenge.
type TwoFactorConfig struct {
	Issuer    string
	Digits    int
	Period    int
	Algorithm string
	// Skew is the number of adjacent time steps accepted on each side.
	Skew uint

	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	ChallengeRedisPrefix string

	BackupCodeCount  int
	BackupCodeLength int
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RatePolicyConfig is one fixed-window ceiling.
type RatePolicyConfig struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds the three named policies. Backend is "redis" or
// "memory"; the memory backend counts per process.
type RateLimitConfig struct {
	General   RatePolicyConfig
	Auth      RatePolicyConfig
	AdminAuth RatePolicyConfig
	Backend   string
	KeyPrefix string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds cross-cutting checks.
type SecurityConfig struct {
	// EnableTokenVersionCheck rejects tokens whose tv claim no longer matches
	// the user record.
	EnableTokenVersionCheck bool
	// AdminRoles gates LoginAdmin. A user needs at least one.
	AdminRoles []string

	// AutoLockoutEnabled locks an account after AutoLockoutThreshold wrong
	// passwords. The lock persists on the user record until an administrator
	// clears it with SetAccountStatus.
	AutoLockoutEnabled   bool
	AutoLockoutThreshold int
	// AutoLockoutWindow is how long failures are remembered. 0 keeps them
	// until a successful login or an unlock.
	AutoLockoutWindow time.Duration
	LockoutKeyPrefix  string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. JWT keys are left empty
// and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "ed25519",
			Issuer:        "skyauth",
			Leeway:        30 * time.Second,
		},
		Tokens: TokenConfig{
			AccessTTL:            15 * time.Minute,
			RefreshTTL:           24 * time.Hour,
			RememberMeRefreshTTL: 30 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			MinLength:        8,
			UpgradeOnLogin:   true,
		},
		TwoFactor: TwoFactorConfig{
			Issuer:               "SkyAuth",
			Digits:               6,
			Period:               30,
			Algorithm:            "SHA1",
			Skew:                 1,
			ChallengeTTL:         10 * time.Minute,
			ChallengeMaxAttempts: 5,
			ChallengeRedisPrefix: "s2fa",
			BackupCodeCount:      10,
			BackupCodeLength:     10,
		},
		RateLimit: RateLimitConfig{
			General:   RatePolicyConfig{Limit: 100, Window: 15 * time.Minute},
			Auth:      RatePolicyConfig{Limit: 5, Window: 15 * time.Minute},
			AdminAuth: RatePolicyConfig{Limit: 3, Window: 30 * time.Minute},
			Backend:   "redis",
			KeyPrefix: "srl",
		},
		Security: SecurityConfig{
			EnableTokenVersionCheck: true,
			AdminRoles:              []string{"admin"},
			AutoLockoutEnabled:      true,
			AutoLockoutThreshold:    10,
			AutoLockoutWindow:       time.Hour,
			LockoutKeyPrefix:        "salo",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// HighSecurityConfig tightens lifetimes and attempt ceilings.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()
	cfg.Tokens.AccessTTL = 5 * time.Minute
	cfg.Tokens.RefreshTTL = 8 * time.Hour
	cfg.Tokens.RememberMeRefreshTTL = 7 * 24 * time.Hour
	cfg.Password.MinLength = 12
	cfg.TwoFactor.ChallengeTTL = 5 * time.Minute
	cfg.TwoFactor.ChallengeMaxAttempts = 3
	cfg.RateLimit.Auth = RatePolicyConfig{Limit: 3, Window: 15 * time.Minute}
	cfg.Security.AutoLockoutThreshold = 5
	cfg.Security.AutoLockoutWindow = 24 * time.Hour
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	out.Security.AdminRoles = append([]string(nil), cfg.Security.AdminRoles...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks for values the engine cannot run with.
func (c *Config) Validate() error {
	// JWT
	switch c.JWT.SigningMethod {
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Tokens
	if c.Tokens.AccessTTL <= 0 {
		return errors.New("Tokens AccessTTL must be > 0")
	}
	if c.Tokens.RefreshTTL < c.Tokens.AccessTTL {
		return errors.New("Tokens RefreshTTL must be >= AccessTTL")
	}
	if c.Tokens.RememberMeRefreshTTL < c.Tokens.RefreshTTL {
		return errors.New("Tokens RememberMeRefreshTTL must be >= RefreshTTL")
	}

	// Password
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxPasswordBytes > 0 && c.Password.MaxPasswordBytes < c.Password.MinLength {
		return errors.New("Password MaxPasswordBytes must be >= MinLength")
	}

	// Two-factor
	tf := c.TwoFactor
	if strings.TrimSpace(tf.Issuer) == "" {
		return errors.New("TwoFactor Issuer must be set")
	}
	if tf.Digits != 6 && tf.Digits != 8 {
		return errors.New("TwoFactor Digits must be 6 or 8")
	}
	if tf.Period <= 0 {
		return errors.New("TwoFactor Period must be > 0")
	}
	switch strings.ToUpper(tf.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return fmt.Errorf("unsupported TwoFactor Algorithm %q", tf.Algorithm)
	}
	if tf.Skew < 1 || tf.Skew > 2 {
		return errors.New("TwoFactor Skew must be in 1..2")
	}
	if tf.ChallengeTTL <= 0 {
		return errors.New("TwoFactor ChallengeTTL must be > 0")
	}
	if tf.ChallengeMaxAttempts <= 0 || tf.ChallengeMaxAttempts > 65535 {
		return errors.New("TwoFactor ChallengeMaxAttempts must be in 1..65535")
	}
	if tf.BackupCodeCount <= 0 || tf.BackupCodeCount > 32 {
		return errors.New("TwoFactor BackupCodeCount must be in 1..32")
	}
	if tf.BackupCodeLength < 8 || tf.BackupCodeLength > 32 {
		return errors.New("TwoFactor BackupCodeLength must be in 8..32")
	}

	// Rate limits
	policies := []struct {
		name string
		p    RatePolicyConfig
	}{
		{"General", c.RateLimit.General},
		{"Auth", c.RateLimit.Auth},
		{"AdminAuth", c.RateLimit.AdminAuth},
	}
	for _, pc := range policies {
		if pc.p.Limit <= 0 || pc.p.Window <= 0 {
			return fmt.Errorf("RateLimit %s requires Limit > 0 and Window > 0", pc.name)
		}
	}
	if c.RateLimit.Backend != "redis" && c.RateLimit.Backend != "memory" {
		return errors.New("RateLimit Backend must be redis or memory")
	}

	// Security
	if c.Security.AutoLockoutEnabled {
		if c.Security.AutoLockoutThreshold < 1 {
			return errors.New("Security AutoLockoutThreshold must be >= 1 when enabled")
		}
		if c.Security.AutoLockoutWindow < 0 {
			return errors.New("Security AutoLockoutWindow must be >= 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}
