package skyAuth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/skyAuth/internal/audit"
	"github.com/MrEthical07/skyAuth/internal/flows"
	"github.com/MrEthical07/skyAuth/internal/rate"
	"github.com/MrEthical07/skyAuth/internal/stores"
	"github.com/MrEthical07/skyAuth/jwt"
	"github.com/MrEthical07/skyAuth/password"
)

// Rate policy names accepted by [Engine.CheckRate].
const (
	PolicyGeneral   = flows.PolicyGeneral
	PolicyAuth      = flows.PolicyAuth
	PolicyAdminAuth = flows.PolicyAdminAuth
)

// Engine is the authentication core. It is safe for concurrent use once
// built and holds no per-user state of its own.
type Engine struct {
	config       Config
	userProvider UserProvider
	jwtManager   *jwt.Manager
	passwordHash *password.Hasher
	dummyHash    string
	totp         *totpManager
	challenges   *stores.ChallengeStore
	limiter      rate.Limiter
	lockout      rate.FailureCounter
	policies     map[string]rate.Policy
	audit        *audit.Dispatcher
	metrics      *Metrics
	log          *zap.Logger
	now          func() time.Time
}

// Close flushes pending audit events. The Engine must not be used after.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Logger returns the engine's operational logger.
func (e *Engine) Logger() *zap.Logger {
	if e == nil || e.log == nil {
		return zap.NewNop()
	}
	return e.log
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// CheckRate counts one hit of the named policy under key. The general
// policy fails open when the counter store is unreachable; the
// authentication policies fail closed with ErrRateLimitUnavailable.
func (e *Engine) CheckRate(ctx context.Context, policy, key string) error {
	if e == nil || e.limiter == nil {
		return ErrEngineNotReady
	}
	p, ok := e.policies[policy]
	if !ok {
		return ErrEngineNotReady
	}

	res, err := e.limiter.Allow(ctx, p, key)
	if err != nil {
		e.metricInc(MetricRateLimitBackendError)
		e.log.Warn("rate limiter unavailable", zap.String("policy", policy), zap.Error(err))
		if policy == PolicyGeneral {
			return nil
		}
		e.emitRateLimit(ctx, policy, key, ErrRateLimitUnavailable)
		return ErrRateLimitUnavailable
	}
	if res.Allowed {
		return nil
	}

	limited := &RateLimitError{Policy: policy, RetryAfter: res.RetryAfter}
	if policy != PolicyGeneral {
		e.metricInc(MetricLoginRateLimited)
	}
	e.emitRateLimit(ctx, policy, key, limited)
	return limited
}

// issuePair mints an access and refresh token for u. Remember-me logins get
// the longer refresh lifetime.
func (e *Engine) issuePair(_ context.Context, u UserRecord, rememberMe bool) (TokenPair, error) {
	in := jwt.IssueInput{
		UserID:       u.UserID,
		TokenVersion: u.TokenVersion,
		TwoFactor:    u.SecondFactor.Enabled,
		RememberMe:   rememberMe,
	}

	access, _, err := e.jwtManager.Issue(jwt.TypeAccess, in)
	if err != nil {
		return TokenPair{}, err
	}

	in.TTL = e.config.Tokens.RefreshTTL
	if rememberMe {
		in.TTL = e.config.Tokens.RememberMeRefreshTTL
	}
	refresh, _, err := e.jwtManager.Issue(jwt.TypeRefresh, in)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    e.config.Tokens.AccessTTL,
	}, nil
}

func (e *Engine) flowCore() flows.Core {
	return flows.Core{
		Store: e.userProvider,
		Now:   e.now,
		Audit: e.emitAudit,
		MetricInc: func(id int) {
			e.metricInc(MetricID(id))
		},
		Metrics: flows.MetricIDs{
			LoginSuccess:           int(MetricLoginSuccess),
			LoginFailure:           int(MetricLoginFailure),
			ChallengeIssued:        int(MetricTwoFactorChallengeIssued),
			TwoFactorLoginSuccess:  int(MetricTwoFactorLoginSuccess),
			TwoFactorLoginFailure:  int(MetricTwoFactorLoginFailure),
			ChallengeExhausted:     int(MetricTwoFactorChallengeExhausted),
			TwoFactorEnabled:       int(MetricTwoFactorEnabled),
			TwoFactorDisabled:      int(MetricTwoFactorDisabled),
			TOTPFailure:            int(MetricTOTPFailure),
			BackupCodeUsed:         int(MetricBackupCodeUsed),
			BackupCodeFailed:       int(MetricBackupCodeFailed),
			BackupCodesRegenerated: int(MetricBackupCodesRegenerated),
			StepUpFailure:          int(MetricStepUpFailure),
			RefreshSuccess:         int(MetricRefreshSuccess),
			RefreshFailure:         int(MetricRefreshFailure),
			TokenVersionMismatch:   int(MetricTokenVersionMismatch),
			PasswordChanged:        int(MetricPasswordChanged),
			AccountStatusChanged:   int(MetricAccountStatusChanged),
			TokensRevoked:          int(MetricTokensRevoked),
			AccountAutoLocked:      int(MetricAccountAutoLocked),
		},
		Log:     e.log,
		Lockout: e.lockout,
	}
}

func (e *Engine) ready() error {
	if e == nil || e.userProvider == nil || e.jwtManager == nil || e.passwordHash == nil {
		return ErrEngineNotReady
	}
	return nil
}

// IsBackendError reports whether err came from an unreachable dependency
// rather than from the caller's input.
func IsBackendError(err error) bool {
	return errors.Is(err, ErrRateLimitUnavailable) ||
		errors.Is(err, ErrChallengeUnavailable) ||
		errors.Is(err, ErrSecondFactorUnavailable) ||
		errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrEngineNotReady)
}
