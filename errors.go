package skyAuth

import (
	"github.com/MrEthical07/skyAuth/csrf"
	"github.com/MrEthical07/skyAuth/internal/flows"
)

var (
	// ErrInvalidCredentials is returned for unknown identifiers and wrong passwords alike.
	ErrInvalidCredentials = flows.ErrInvalidCredentials
	// ErrUserNotFound is the provider contract for a missing record. Login never surfaces it.
	ErrUserNotFound = flows.ErrUserNotFound
	// ErrAccountInactive is returned when the live record is not active.
	ErrAccountInactive = flows.ErrAccountInactive
	// ErrAccountLocked is returned when the live record is locked.
	ErrAccountLocked = flows.ErrAccountLocked
	// ErrStoreUnavailable is returned when the credential store fails for a reason other than a missing user.
	ErrStoreUnavailable = flows.ErrStoreUnavailable

	// ErrTokenExpired is returned for a well-formed token past its embedded expiry.
	ErrTokenExpired = flows.ErrTokenExpired
	// ErrTokenInvalid is returned for malformed, mistyped, or revoked tokens.
	ErrTokenInvalid = flows.ErrTokenInvalid

	// ErrChallengeExpired is returned when a pending second-factor challenge is past its TTL.
	ErrChallengeExpired = flows.ErrChallengeExpired
	// ErrChallengeInvalid is returned when a pending challenge is missing, malformed, consumed, or bound to another user.
	ErrChallengeInvalid = flows.ErrChallengeInvalid
	// ErrChallengeUnavailable is returned when the challenge backend cannot be reached.
	ErrChallengeUnavailable = flows.ErrChallengeUnavailable

	// ErrInvalidCode is returned for a TOTP code that does not verify.
	ErrInvalidCode = flows.ErrInvalidCode
	// ErrInvalidOrUsedBackupCode is returned for unknown or already consumed backup codes.
	ErrInvalidOrUsedBackupCode = flows.ErrInvalidOrUsedBackupCode
	// ErrAlreadyEnabled is returned by setup when the second factor is active.
	ErrAlreadyEnabled = flows.ErrAlreadyEnabled
	// ErrSetupNotStarted is returned by confirm when no pending secret exists.
	ErrSetupNotStarted = flows.ErrSetupNotStarted
	// ErrNotEnrolled is returned when an operation needs an active second factor.
	ErrNotEnrolled = flows.ErrNotEnrolled
	// ErrSecondFactorUnavailable is returned when second-factor state cannot be read or written.
	ErrSecondFactorUnavailable = flows.ErrSecondFactorUnavailable

	// ErrStepUpRequired is returned when a sensitive operation is missing a required proof.
	ErrStepUpRequired = flows.ErrStepUpRequired
	// ErrPermissionDenied is returned by authorization checks.
	ErrPermissionDenied = flows.ErrPermissionDenied
	// ErrPasswordPolicy is returned when a new password does not satisfy policy.
	ErrPasswordPolicy = flows.ErrPasswordPolicy
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = flows.ErrPasswordReuse

	// ErrRateLimited is the sentinel matched by every *RateLimitError.
	ErrRateLimited = flows.ErrRateLimited
	// ErrRateLimitUnavailable is returned when an authentication policy cannot reach its counter store.
	ErrRateLimitUnavailable = flows.ErrRateLimitUnavailable

	// ErrEngineNotReady is returned when required dependencies are missing.
	ErrEngineNotReady = flows.ErrEngineNotReady
)

var (
	ErrMissingCSRFCookie = csrf.ErrMissingCookie
	ErrMissingCSRFToken  = csrf.ErrMissingToken
	ErrCSRFTokenMismatch = csrf.ErrTokenMismatch
)

// RateLimitError reports which policy rejected the request and when the
// client may retry. It matches ErrRateLimited with errors.Is.
type RateLimitError = flows.RateLimitError
