package flows

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrAccountInactive    = errors.New("account inactive")
	ErrAccountLocked      = errors.New("account locked")
	ErrStoreUnavailable   = errors.New("credential store unavailable")

	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")

	ErrChallengeExpired     = errors.New("two-factor challenge expired")
	ErrChallengeInvalid     = errors.New("two-factor challenge invalid")
	ErrChallengeUnavailable = errors.New("two-factor challenge backend unavailable")

	ErrInvalidCode             = errors.New("invalid verification code")
	ErrInvalidOrUsedBackupCode = errors.New("invalid or used backup code")
	ErrAlreadyEnabled          = errors.New("two-factor authentication already enabled")
	ErrSetupNotStarted         = errors.New("two-factor setup not started")
	ErrNotEnrolled             = errors.New("two-factor authentication not enabled")
	ErrSecondFactorUnavailable = errors.New("two-factor backend unavailable")

	ErrStepUpRequired   = errors.New("step-up authentication required")
	ErrPermissionDenied = errors.New("permission denied")
	ErrPasswordPolicy   = errors.New("password policy violation")
	ErrPasswordReuse    = errors.New("new password must be different from current password")

	ErrRateLimited          = errors.New("rate limited")
	ErrRateLimitUnavailable = errors.New("rate limit backend unavailable")

	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError reports which policy rejected the request and when the
// client may retry. It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	Policy     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s policy, retry after %s", e.Policy, e.RetryAfter)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// StatusError returns the error a login or token check reports for u, or
// nil when the account may authenticate. Locked wins over inactive.
func StatusError(u User) error {
	if u.Locked || u.Status == AccountLocked {
		return ErrAccountLocked
	}
	if u.Status != AccountActive {
		return ErrAccountInactive
	}
	return nil
}
