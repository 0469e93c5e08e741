package skyAuth

import "time"

// SecurityReport summarizes the effective security posture of an Engine.
// Operators log it at startup.
type SecurityReport struct {
	SigningAlgorithm     string
	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	RememberMeRefreshTTL time.Duration
	Argon2               PasswordConfigReport
	TwoFactor            TwoFactorReport
	RateLimits           map[string]RatePolicyConfig
	RateLimitBackend     string
	TokenVersionCheck    bool
	AdminRoles           []string
	AutoLockout          LockoutReport
	AuditEnabled         bool
}

type LockoutReport struct {
	Enabled   bool
	Threshold int
	Window    time.Duration
}

type PasswordConfigReport struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

type TwoFactorReport struct {
	Digits               int
	Period               int
	Algorithm            string
	Skew                 uint
	ChallengeTTL         time.Duration
	ChallengeMaxAttempts int
	BackupCodeCount      int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config

	return SecurityReport{
		SigningAlgorithm:     c.JWT.SigningMethod,
		AccessTTL:            c.Tokens.AccessTTL,
		RefreshTTL:           c.Tokens.RefreshTTL,
		RememberMeRefreshTTL: c.Tokens.RememberMeRefreshTTL,
		Argon2: PasswordConfigReport{
			Memory:         c.Password.Memory,
			Time:           c.Password.Time,
			Parallelism:    c.Password.Parallelism,
			SaltLength:     c.Password.SaltLength,
			KeyLength:      c.Password.KeyLength,
			MinLength:      c.Password.MinLength,
			UpgradeOnLogin: c.Password.UpgradeOnLogin,
		},
		TwoFactor: TwoFactorReport{
			Digits:               c.TwoFactor.Digits,
			Period:               c.TwoFactor.Period,
			Algorithm:            c.TwoFactor.Algorithm,
			Skew:                 c.TwoFactor.Skew,
			ChallengeTTL:         c.TwoFactor.ChallengeTTL,
			ChallengeMaxAttempts: c.TwoFactor.ChallengeMaxAttempts,
			BackupCodeCount:      c.TwoFactor.BackupCodeCount,
		},
		RateLimits: map[string]RatePolicyConfig{
			PolicyGeneral:   c.RateLimit.General,
			PolicyAuth:      c.RateLimit.Auth,
			PolicyAdminAuth: c.RateLimit.AdminAuth,
		},
		RateLimitBackend:  c.RateLimit.Backend,
		TokenVersionCheck: c.Security.EnableTokenVersionCheck,
		AdminRoles:        append([]string(nil), c.Security.AdminRoles...),
		AutoLockout: LockoutReport{
			Enabled:   c.Security.AutoLockoutEnabled,
			Threshold: c.Security.AutoLockoutThreshold,
			Window:    c.Security.AutoLockoutWindow,
		},
		AuditEnabled: c.Audit.Enabled,
	}
}
