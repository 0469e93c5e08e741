package skyAuth

import (
	"context"
	"errors"

	"github.com/MrEthical07/skyAuth/internal/flows"
	"github.com/MrEthical07/skyAuth/internal/logger"
)

// Audit event kinds. Every event the engine emits uses one of these.
const (
	AuditEventLoginSuccess           = flows.EventLoginSuccess
	AuditEventLoginFailure           = flows.EventLoginFailure
	AuditEventAdminLoginSuccess      = flows.EventAdminLoginSuccess
	AuditEventAdminLoginFailure      = flows.EventAdminLoginFailure
	AuditEventTwoFactorRequired      = flows.EventTwoFactorRequired
	AuditEventTwoFactorLoginSuccess  = flows.EventTwoFactorLoginSuccess
	AuditEventTwoFactorLoginFailure  = flows.EventTwoFactorLoginFailure
	AuditEventTwoFactorExhausted     = flows.EventTwoFactorExhausted
	AuditEventTwoFactorSetupStarted  = flows.EventTwoFactorSetupStarted
	AuditEventTwoFactorEnabled       = flows.EventTwoFactorEnabled
	AuditEventTwoFactorConfirmFailed = flows.EventTwoFactorConfirmFailed
	AuditEventTwoFactorDisabled      = flows.EventTwoFactorDisabled
	AuditEventBackupCodesGenerated   = flows.EventBackupCodesGenerated
	AuditEventBackupCodeUsed         = flows.EventBackupCodeUsed
	AuditEventBackupCodeFailed       = flows.EventBackupCodeFailed
	AuditEventStepUpFailure          = flows.EventStepUpFailure
	AuditEventRefreshSuccess         = flows.EventRefreshSuccess
	AuditEventRefreshFailure         = flows.EventRefreshFailure
	AuditEventPasswordChanged        = flows.EventPasswordChanged
	AuditEventPasswordChangeFailure  = flows.EventPasswordChangeFailure
	AuditEventAccountStatusChange    = flows.EventAccountStatusChange
	AuditEventAccountAutoLocked      = flows.EventAccountAutoLocked
	AuditEventPasswordRehash         = flows.EventPasswordRehash
	AuditEventTokensRevoked          = flows.EventTokensRevoked
	AuditEventRateLimitTriggered     = "rate_limit_triggered"

	// Emitted by the HTTP middleware through [Engine.EmitSecurityEvent].
	AuditEventCSRFRejected      = "csrf_rejected"
	AuditEventInjectionDetected = "injection_detected"
	AuditEventPermissionDenied  = "permission_denied"
)

// AuditErrorCode is the stable error label written to audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountInactive    AuditErrorCode = "account_inactive"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenInvalid       AuditErrorCode = "token_invalid"
	auditErrChallengeExpired   AuditErrorCode = "challenge_expired"
	auditErrChallengeInvalid   AuditErrorCode = "challenge_invalid"
	auditErrInvalidCode        AuditErrorCode = "invalid_code"
	auditErrBackupCodeInvalid  AuditErrorCode = "invalid_or_used_backup_code"
	auditErrAlreadyEnabled     AuditErrorCode = "already_enabled"
	auditErrSetupNotStarted    AuditErrorCode = "setup_not_started"
	auditErrNotEnrolled        AuditErrorCode = "not_enrolled"
	auditErrStepUpRequired     AuditErrorCode = "step_up_required"
	auditErrPermissionDenied   AuditErrorCode = "permission_denied"
	auditErrPasswordPolicy     AuditErrorCode = "password_policy"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrCSRF               AuditErrorCode = "csrf"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	kind string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		Kind:      kind,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Endpoint:  endpointFromContext(ctx),
		RequestID: requestIDFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

// EmitSecurityEvent records a rejection detected outside the engine, such as
// a CSRF mismatch or an injection pattern. Values in fields are stored as
// given; callers redact codes before passing them.
func (e *Engine) EmitSecurityEvent(ctx context.Context, kind string, userID string, err error, fields map[string]string) {
	e.emitAudit(ctx, kind, false, userID, err, func() map[string]string { return fields })
}

func (e *Engine) emitRateLimit(ctx context.Context, policy, key string, err error) {
	if errors.Is(err, ErrRateLimited) {
		e.metricInc(MetricRateLimitHit)
	}
	e.emitAudit(ctx, AuditEventRateLimitTriggered, false, "", err, func() map[string]string {
		return map[string]string{
			"policy": policy,
			"key":    logger.Redact(key),
		}
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrChallengeExpired):
		return auditErrChallengeExpired
	case errors.Is(err, ErrChallengeInvalid):
		return auditErrChallengeInvalid
	case errors.Is(err, ErrInvalidCode):
		return auditErrInvalidCode
	case errors.Is(err, ErrInvalidOrUsedBackupCode):
		return auditErrBackupCodeInvalid
	case errors.Is(err, ErrAlreadyEnabled):
		return auditErrAlreadyEnabled
	case errors.Is(err, ErrSetupNotStarted):
		return auditErrSetupNotStarted
	case errors.Is(err, ErrNotEnrolled):
		return auditErrNotEnrolled
	case errors.Is(err, ErrStepUpRequired):
		return auditErrStepUpRequired
	case errors.Is(err, ErrPermissionDenied):
		return auditErrPermissionDenied
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrMissingCSRFCookie),
		errors.Is(err, ErrMissingCSRFToken),
		errors.Is(err, ErrCSRFTokenMismatch):
		return auditErrCSRF
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrRateLimitUnavailable),
		errors.Is(err, ErrChallengeUnavailable),
		errors.Is(err, ErrSecondFactorUnavailable),
		errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, ErrEngineNotReady):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
