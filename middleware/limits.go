package middleware

import (
	"net/http"

	skyAuth "github.com/MrEthical07/skyAuth"
)

// LimitBody caps request bodies at max bytes. A declared length over the cap
// is rejected up front; reads past it fail with *http.MaxBytesError.
func LimitBody(max int64, onErr ErrorWriter) Middleware {
	onErr = orDefault(onErr)
	return func(next http.Handler) http.Handler {
		if max <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > max {
				onErr(w, r, ErrBodyTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit applies the general policy per client IP. The engine fails
// open for this policy when its backend is down.
func RateLimit(rc RateChecker, trustProxy bool, onErr ErrorWriter) Middleware {
	onErr = orDefault(onErr)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := rc.CheckRate(r.Context(), skyAuth.PolicyGeneral, "general:"+ClientIP(r, trustProxy)); err != nil {
				onErr(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
