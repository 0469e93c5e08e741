package middleware

import (
	"net/http"

	skyAuth "github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/csrf"
)

// CSRF enforces the double-submit check before any handler side effect.
// Rejections are audited.
func CSRF(guard *csrf.Guard, events SecurityEmitter, onErr ErrorWriter) Middleware {
	onErr = orDefault(onErr)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := guard.Check(r); err != nil {
				emit(events, r.Context(), skyAuth.AuditEventCSRFRejected, "", err, map[string]string{
					"method": r.Method,
				})
				onErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
