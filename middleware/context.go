package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	skyAuth "github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*skyAuth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*skyAuth.AuthResult)
	return res, ok
}

func withAuthResult(ctx context.Context, res *skyAuth.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// RequestID keeps a sane inbound X-Request-ID or mints a UUID, echoes it,
// and attaches a request-scoped logger.
func RequestID(base *zap.Logger) Middleware {
	if base == nil {
		base = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			ctx := skyAuth.WithRequestID(r.Context(), id)
			ctx = logger.ToContext(ctx, base.With(zap.String("request_id", id)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientContext attaches client IP, user agent and endpoint for rate keys
// and audit events. X-Forwarded-For is honoured only when trustProxy is set.
func ClientContext(trustProxy bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := skyAuth.WithClientIP(r.Context(), ClientIP(r, trustProxy))
			ctx = skyAuth.WithUserAgent(ctx, r.UserAgent())
			ctx = skyAuth.WithEndpoint(ctx, r.Method+" "+r.URL.Path)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
			first, _, _ := strings.Cut(xf, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
