package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	skyAuth "github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/internal/logger"
	"github.com/MrEthical07/skyAuth/middleware"
)

// AppError is the error body every endpoint returns.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`

	retryAfter int
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// WithCause returns a copy of e carrying err.
func (e *AppError) WithCause(err error) *AppError {
	out := *e
	out.Err = err
	return &out
}

var (
	ErrBadRequest  = New(http.StatusBadRequest, "BAD_REQUEST", "The request is malformed.")
	ErrInvalidJSON = New(http.StatusBadRequest, "INVALID_JSON", "The request body is not valid JSON.")
	ErrMissing     = New(http.StatusBadRequest, "MISSING_FIELDS", "Required fields are missing.")
	ErrRejected    = New(http.StatusBadRequest, "INPUT_REJECTED", "The request contains disallowed input.")
	ErrBodyTooBig  = New(http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "The request body is too large.")

	ErrInvalidCredentials = New(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid credentials.")
	ErrTokenExpired       = New(http.StatusUnauthorized, "TOKEN_EXPIRED", "The token has expired.")
	ErrTokenInvalid       = New(http.StatusUnauthorized, "TOKEN_INVALID", "The token is invalid.")
	ErrChallengeExpired   = New(http.StatusUnauthorized, "CHALLENGE_EXPIRED", "The verification step has expired. Sign in again.")
	ErrChallengeInvalid   = New(http.StatusUnauthorized, "CHALLENGE_INVALID", "The verification step is invalid. Sign in again.")
	ErrInvalidCode        = New(http.StatusUnauthorized, "INVALID_CODE", "The verification code is invalid.")
	ErrBackupCode         = New(http.StatusUnauthorized, "INVALID_OR_USED_BACKUP_CODE", "The backup code is invalid or already used.")

	ErrAccountInactive   = New(http.StatusForbidden, "ACCOUNT_INACTIVE", "The account is inactive.")
	ErrAccountLocked     = New(http.StatusForbidden, "ACCOUNT_LOCKED", "The account is locked.")
	ErrMissingCSRFCookie = New(http.StatusForbidden, "MISSING_CSRF_COOKIE", "CSRF cookie missing.")
	ErrMissingCSRFToken  = New(http.StatusForbidden, "MISSING_CSRF_TOKEN", "CSRF token missing.")
	ErrCSRFMismatch      = New(http.StatusForbidden, "CSRF_TOKEN_MISMATCH", "CSRF token mismatch.")
	ErrForbidden         = New(http.StatusForbidden, "FORBIDDEN", "You do not have access to this resource.")
	ErrStepUpRequired    = New(http.StatusForbidden, "STEP_UP_REQUIRED", "Re-authentication is required.")

	ErrNotFound       = New(http.StatusNotFound, "NOT_FOUND", "The resource was not found.")
	ErrAlreadyEnabled = New(http.StatusConflict, "ALREADY_ENABLED", "Two-factor authentication is already enabled.")
	ErrSetupNotStart  = New(http.StatusConflict, "SETUP_NOT_STARTED", "Two-factor setup has not been started.")
	ErrNotEnrolled    = New(http.StatusConflict, "NOT_ENROLLED", "Two-factor authentication is not enabled.")

	ErrPasswordPolicy = New(http.StatusUnprocessableEntity, "PASSWORD_POLICY", "The new password does not meet the policy.")
	ErrPasswordReuse  = New(http.StatusUnprocessableEntity, "PASSWORD_REUSE", "The new password must differ from the current one.")

	ErrRateLimited = New(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests. Try again later.")
	ErrUnavailable = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "The service is temporarily unavailable.")
	ErrInternal    = New(http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred.")
)

// FromEngineError maps engine, CSRF and middleware errors to an AppError.
// Anything unrecognised becomes ErrInternal with the cause kept for logs.
func FromEngineError(err error) *AppError {
	var app *AppError
	if errors.As(err, &app) {
		return app
	}

	var limited *skyAuth.RateLimitError
	if errors.As(err, &limited) {
		out := ErrRateLimited.WithCause(err)
		secs := int(limited.RetryAfter.Seconds())
		if limited.RetryAfter > 0 && secs == 0 {
			secs = 1
		}
		out.retryAfter = secs
		return out
	}

	table := []struct {
		target error
		app    *AppError
	}{
		{skyAuth.ErrInvalidCredentials, ErrInvalidCredentials},
		{skyAuth.ErrTokenExpired, ErrTokenExpired},
		{skyAuth.ErrTokenInvalid, ErrTokenInvalid},
		{skyAuth.ErrChallengeExpired, ErrChallengeExpired},
		{skyAuth.ErrChallengeInvalid, ErrChallengeInvalid},
		{skyAuth.ErrInvalidCode, ErrInvalidCode},
		{skyAuth.ErrInvalidOrUsedBackupCode, ErrBackupCode},
		{skyAuth.ErrAccountInactive, ErrAccountInactive},
		{skyAuth.ErrAccountLocked, ErrAccountLocked},
		{skyAuth.ErrMissingCSRFCookie, ErrMissingCSRFCookie},
		{skyAuth.ErrMissingCSRFToken, ErrMissingCSRFToken},
		{skyAuth.ErrCSRFTokenMismatch, ErrCSRFMismatch},
		{skyAuth.ErrPermissionDenied, ErrForbidden},
		{skyAuth.ErrStepUpRequired, ErrStepUpRequired},
		{skyAuth.ErrAlreadyEnabled, ErrAlreadyEnabled},
		{skyAuth.ErrSetupNotStarted, ErrSetupNotStart},
		{skyAuth.ErrNotEnrolled, ErrNotEnrolled},
		{skyAuth.ErrPasswordPolicy, ErrPasswordPolicy},
		{skyAuth.ErrPasswordReuse, ErrPasswordReuse},
		{skyAuth.ErrUserNotFound, ErrNotFound},
		{skyAuth.ErrRateLimited, ErrRateLimited},
		{middleware.ErrBodyTooLarge, ErrBodyTooBig},
		{middleware.ErrInjectionRejected, ErrRejected},
	}
	for _, m := range table {
		if errors.Is(err, m.target) {
			return m.app.WithCause(err)
		}
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return ErrBodyTooBig.WithCause(err)
	}
	if skyAuth.IsBackendError(err) {
		return ErrUnavailable.WithCause(err)
	}
	return ErrInternal.WithCause(err)
}

// WriteError renders err. It satisfies middleware.ErrorWriter.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	app := FromEngineError(err)
	if app.HTTPStatus >= http.StatusInternalServerError {
		logger.From(r.Context()).Error("request failed",
			zap.String("code", app.Code),
			zap.String("path", r.URL.Path),
			zap.Error(app.Err),
		)
	}
	if app.retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(app.retryAfter))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(app.HTTPStatus)
	_ = json.NewEncoder(w).Encode(struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{app.Code, app.Message})
}
