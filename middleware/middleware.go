package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	skyAuth "github.com/MrEthical07/skyAuth"
)

type Middleware func(http.Handler) http.Handler

// Chain wraps h so that the first middleware runs first.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}

// ErrorWriter renders a rejection.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

var (
	// ErrMissingBearer matches skyAuth.ErrTokenInvalid.
	ErrMissingBearer     = fmt.Errorf("%w: bearer token missing", skyAuth.ErrTokenInvalid)
	ErrBodyTooLarge      = errors.New("request body too large")
	ErrInjectionRejected = errors.New("request rejected by input filter")
)

type RateChecker interface {
	CheckRate(ctx context.Context, policy, key string) error
}

type Validator interface {
	Validate(ctx context.Context, accessToken string) (*skyAuth.AuthResult, error)
}

type StepUpper interface {
	StepUp(ctx context.Context, userID string, req skyAuth.StepUpRequirement, proof skyAuth.StepUpProof) (skyAuth.UserRecord, error)
}

// SecurityEmitter records rejections detected outside the engine.
type SecurityEmitter interface {
	EmitSecurityEvent(ctx context.Context, kind string, userID string, err error, fields map[string]string)
}

func defaultErrorWriter(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, skyAuth.ErrTokenInvalid), errors.Is(err, skyAuth.ErrTokenExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, skyAuth.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, ErrBodyTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInjectionRejected):
		status = http.StatusBadRequest
	case errors.Is(err, skyAuth.ErrMissingCSRFCookie),
		errors.Is(err, skyAuth.ErrMissingCSRFToken),
		errors.Is(err, skyAuth.ErrCSRFTokenMismatch),
		errors.Is(err, skyAuth.ErrPermissionDenied),
		errors.Is(err, skyAuth.ErrStepUpRequired):
		status = http.StatusForbidden
	}
	http.Error(w, http.StatusText(status), status)
}

func orDefault(onErr ErrorWriter) ErrorWriter {
	if onErr == nil {
		return defaultErrorWriter
	}
	return onErr
}

func emit(e SecurityEmitter, ctx context.Context, kind, userID string, err error, fields map[string]string) {
	if e != nil {
		e.EmitSecurityEvent(ctx, kind, userID, err, fields)
	}
}
