package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	skyAuth "github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/csrf"
	"github.com/MrEthical07/skyAuth/sanitize"
)

type fakeEngine struct {
	mu sync.Mutex

	rateErr   error
	stepUpErr error
	users     map[string]*skyAuth.AuthResult

	rateKeys  []string
	validated int
	stepUps   []skyAuth.StepUpProof
	events    []string
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{users: map[string]*skyAuth.AuthResult{
		"good-token":  {UserID: "u1", Roles: []string{"agent"}},
		"admin-token": {UserID: "a1", Roles: []string{"admin"}},
	}}
}

func (f *fakeEngine) CheckRate(_ context.Context, policy, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rateKeys = append(f.rateKeys, policy+"/"+key)
	return f.rateErr
}

func (f *fakeEngine) Validate(_ context.Context, token string) (*skyAuth.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validated++
	res, ok := f.users[token]
	if !ok {
		return nil, skyAuth.ErrTokenInvalid
	}
	return res, nil
}

func (f *fakeEngine) StepUp(_ context.Context, _ string, _ skyAuth.StepUpRequirement, proof skyAuth.StepUpProof) (skyAuth.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stepUps = append(f.stepUps, proof)
	return skyAuth.UserRecord{}, f.stepUpErr
}

func (f *fakeEngine) EmitSecurityEvent(_ context.Context, kind string, _ string, _ error, _ map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, kind)
}

type recordedError struct {
	err error
}

func (r *recordedError) write(w http.ResponseWriter, _ *http.Request, err error) {
	r.err = err
	w.WriteHeader(http.StatusTeapot)
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		*called = true
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "handler") }), mark("a"), nil, mark("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"a", "b", "handler"}, order)
}

// A write with a valid access token but no CSRF header is refused before
// the handler or token validation runs.
func TestGateRejectsMissingCSRFHeaderBeforeHandler(t *testing.T) {
	eng := newFakeEngine()
	rec := &recordedError{}
	var called bool
	h := Gate(GateConfig{Engine: eng, CSRF: csrf.New(csrf.DefaultConfig()), OnError: rec.write})(okHandler(&called))

	r := httptest.NewRequest(http.MethodPost, "/api/auth/2fa/disable", strings.NewReader(`{}`))
	r.Header.Set("Authorization", "Bearer good-token")
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.False(t, called)
	require.ErrorIs(t, rec.err, skyAuth.ErrMissingCSRFToken)
	require.Zero(t, eng.validated)
	require.Equal(t, []string{skyAuth.AuditEventCSRFRejected}, eng.events)
}

func TestGatePassesWithMatchingCSRF(t *testing.T) {
	eng := newFakeEngine()
	var called bool
	var seen *skyAuth.AuthResult
	h := Gate(GateConfig{Engine: eng, CSRF: csrf.New(csrf.DefaultConfig())})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		seen, _ = AuthResultFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/auth/logout-all", nil)
	r.RemoteAddr = "192.0.2.7:5555"
	r.Header.Set("Authorization", "Bearer good-token")
	r.Header.Set("X-CSRF-Token", "tok")
	r.AddCookie(&http.Cookie{Name: "csrf_token", Value: "tok"})
	h.ServeHTTP(httptest.NewRecorder(), r)

	require.True(t, called)
	require.Equal(t, "u1", seen.UserID)
	require.Equal(t, []string{"general/general:192.0.2.7"}, eng.rateKeys)
}

func TestGateRateLimitRunsFirst(t *testing.T) {
	eng := newFakeEngine()
	eng.rateErr = &skyAuth.RateLimitError{Policy: skyAuth.PolicyGeneral}
	rec := &recordedError{}
	var called bool
	h := Gate(GateConfig{Engine: eng, CSRF: csrf.New(csrf.DefaultConfig()), OnError: rec.write})(okHandler(&called))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))
	require.False(t, called)
	require.ErrorIs(t, rec.err, skyAuth.ErrRateLimited)
	require.Empty(t, eng.events)
}

func TestAuthenticateRequiresBearer(t *testing.T) {
	eng := newFakeEngine()
	rec := &recordedError{}
	var called bool
	h := Authenticate(eng, rec.write)(okHandler(&called))

	for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer nope"} {
		rec.err = nil
		r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		h.ServeHTTP(httptest.NewRecorder(), r)
		require.ErrorIs(t, rec.err, skyAuth.ErrTokenInvalid, header)
	}
	require.False(t, called)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Authorization", "bearer good-token")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.True(t, called)
}

func TestStepUpAndRoles(t *testing.T) {
	eng := newFakeEngine()
	rec := &recordedError{}
	req := skyAuth.StepUpRequirement{TOTP: skyAuth.TOTPRequired}
	var called bool
	h := Gate(GateConfig{Engine: eng, OnError: rec.write, StepUp: &req, Roles: []string{"admin"}})(okHandler(&called))

	r := httptest.NewRequest(http.MethodPost, "/api/admin/users/u9/status", nil)
	r.Header.Set("Authorization", "Bearer good-token")
	r.Header.Set(StepUpCodeHeader, " 123456 ")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.False(t, called)
	require.ErrorIs(t, rec.err, skyAuth.ErrPermissionDenied)
	require.Equal(t, "123456", eng.stepUps[0].Code)
	require.Contains(t, eng.events, skyAuth.AuditEventPermissionDenied)

	eng.stepUpErr = skyAuth.ErrInvalidCode
	r = httptest.NewRequest(http.MethodPost, "/api/admin/users/u9/status", nil)
	r.Header.Set("Authorization", "Bearer admin-token")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.False(t, called)
	require.ErrorIs(t, rec.err, skyAuth.ErrInvalidCode)

	eng.stepUpErr = nil
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.True(t, called)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.1.1:443"
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")

	require.Equal(t, "10.1.1.1", ClientIP(r, false))
	require.Equal(t, "203.0.113.5", ClientIP(r, true))
}

func TestRequestIDAndClientContext(t *testing.T) {
	var got *http.Request
	h := Chain(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { got = r }), RequestID(nil), ClientContext(false))

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("User-Agent", "ua/1")
	h.ServeHTTP(rec, r)

	id := rec.Header().Get(RequestIDHeader)
	require.Len(t, id, 36)
	require.NotNil(t, got)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "caller-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	require.Equal(t, "caller-id", rec.Header().Get(RequestIDHeader))
}

func TestLimitBody(t *testing.T) {
	rec := &recordedError{}
	var called bool
	h := LimitBody(8, rec.write)(okHandler(&called))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	require.False(t, called)
	require.ErrorIs(t, rec.err, ErrBodyTooLarge)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	require.True(t, called)
}

func TestSanitizeJSON(t *testing.T) {
	eng := newFakeEngine()
	var body string
	h := SanitizeJSON(sanitize.New(sanitize.DefaultOptions()), eng, nil)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body = string(b)
	}))

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"<b>Ada</b>","password":"<x>"}`))
	r.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.JSONEq(t, `{"name":"Ada","password":"<x>"}`, body)
	require.Empty(t, eng.events)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"identifier":{"$gt":""}}`))
	r.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.JSONEq(t, `{"identifier":{}}`, body)
	require.Equal(t, []string{skyAuth.AuditEventInjectionDetected}, eng.events)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
	r.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.Equal(t, "not json", body)
}

func TestSanitizeJSONStrictRejects(t *testing.T) {
	eng := newFakeEngine()
	rec := &recordedError{}
	var called bool
	h := SanitizeJSON(sanitize.New(sanitize.Options{Strict: true}), eng, rec.write)(okHandler(&called))

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"q":"1 UNION SELECT secret FROM users"}`))
	r.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.False(t, called)
	require.True(t, errors.Is(rec.err, ErrInjectionRejected))
}

func TestRecover(t *testing.T) {
	rec := &recordedError{}
	h := Recover(rec.write)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, w.Code)
	require.Error(t, rec.err)
}

func TestSecurityHeadersAndNoStore(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}), SecurityHeaders(), NoStore())
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-Proto", "https")
	h.ServeHTTP(w, r)

	require.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	require.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
}
