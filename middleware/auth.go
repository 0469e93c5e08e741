package middleware

import (
	"net/http"
	"strings"

	skyAuth "github.com/MrEthical07/skyAuth"
)

const (
	// StepUpCodeHeader carries a fresh TOTP code for step-up routes.
	StepUpCodeHeader = "X-OTP-Code"
	// StepUpPasswordHeader carries the current password for step-up routes.
	StepUpPasswordHeader = "X-Reauth-Password"
)

// Authenticate validates the bearer access token and stores the
// *skyAuth.AuthResult in the request context.
func Authenticate(v Validator, onErr ErrorWriter) Middleware {
	onErr = orDefault(onErr)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				onErr(w, r, ErrMissingBearer)
				return
			}

			res, err := v.Validate(r.Context(), token)
			if err != nil {
				onErr(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withAuthResult(r.Context(), res)))
		})
	}
}

// RequireStepUp re-verifies the authenticated user with proofs read from
// StepUpPasswordHeader and StepUpCodeHeader. It must run after Authenticate.
func RequireStepUp(s StepUpper, req skyAuth.StepUpRequirement, onErr ErrorWriter) Middleware {
	onErr = orDefault(onErr)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				onErr(w, r, ErrMissingBearer)
				return
			}

			proof := skyAuth.StepUpProof{
				Password: r.Header.Get(StepUpPasswordHeader),
				Code:     strings.TrimSpace(r.Header.Get(StepUpCodeHeader)),
			}
			if _, err := s.StepUp(r.Context(), res.UserID, req, proof); err != nil {
				onErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles admits users holding at least one of roles. It must run
// after Authenticate.
func RequireRoles(events SecurityEmitter, onErr ErrorWriter, roles ...string) Middleware {
	onErr = orDefault(onErr)
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				onErr(w, r, ErrMissingBearer)
				return
			}
			for _, role := range res.Roles {
				if _, ok := allowed[role]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			emit(events, r.Context(), skyAuth.AuditEventPermissionDenied, res.UserID, skyAuth.ErrPermissionDenied, map[string]string{
				"required": strings.Join(roles, ","),
			})
			onErr(w, r, skyAuth.ErrPermissionDenied)
		})
	}
}
