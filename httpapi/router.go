package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	skyAuth "github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/csrf"
	"github.com/MrEthical07/skyAuth/middleware"
	"github.com/MrEthical07/skyAuth/sanitize"
)

type Config struct {
	Engine *skyAuth.Engine
	// CSRF defaults to a guard built from DefaultCSRFConfig.
	CSRF *csrf.Guard
	// Sanitizer defaults to sanitize.DefaultOptions.
	Sanitizer *sanitize.Sanitizer
	Logger    *zap.Logger
	// Metrics is mounted at /metrics when set.
	Metrics      http.Handler
	MaxBodyBytes int64
	TrustProxy   bool
	AdminRoles   []string
}

// SkipRules is the CSRF exemption table. These routes are reached before a
// session exists or authenticate with a body token.
func SkipRules() []csrf.SkipRule {
	return []csrf.SkipRule{
		{Match: csrf.MethodPath(http.MethodPost, "/api/auth/login"), Reason: "login"},
		{Match: csrf.MethodPath(http.MethodPost, "/api/admin/auth/login"), Reason: "admin login"},
		{Match: csrf.MethodPath(http.MethodPost, "/api/auth/2fa/verify"), Reason: "second factor login"},
		{Match: csrf.MethodPath(http.MethodPost, "/api/auth/refresh"), Reason: "token refresh"},
	}
}

// DefaultCSRFConfig is csrf.DefaultConfig with SkipRules installed.
func DefaultCSRFConfig() csrf.Config {
	cfg := csrf.DefaultConfig()
	cfg.Skip = SkipRules()
	return cfg
}

// NewRouter mounts every endpoint on a chi router.
func NewRouter(cfg Config) http.Handler {
	if cfg.CSRF == nil {
		cfg.CSRF = csrf.New(DefaultCSRFConfig())
	}
	if cfg.Sanitizer == nil {
		cfg.Sanitizer = sanitize.New(sanitize.DefaultOptions())
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 64 << 10
	}
	if len(cfg.AdminRoles) == 0 {
		cfg.AdminRoles = []string{"admin"}
	}

	h := &handlers{engine: cfg.Engine, csrf: cfg.CSRF}
	eng := cfg.Engine
	clean := middleware.SanitizeJSON(cfg.Sanitizer, eng, WriteError)

	r := chi.NewRouter()
	r.Use(
		middleware.Recover(WriteError),
		middleware.RequestID(cfg.Logger),
		middleware.AccessLog(),
		middleware.SecurityHeaders(),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.NoStore())

		api.Group(func(pub chi.Router) {
			pub.Use(
				middleware.LimitBody(cfg.MaxBodyBytes, WriteError),
				middleware.ClientContext(cfg.TrustProxy),
				middleware.RateLimit(eng, cfg.TrustProxy, WriteError),
				middleware.CSRF(cfg.CSRF, eng, WriteError),
				clean,
			)
			pub.Get("/auth/csrf-token", h.csrfToken)
			pub.Post("/auth/login", h.login)
			pub.Post("/admin/auth/login", h.loginAdmin)
			pub.Post("/auth/2fa/verify", h.verifyTwoFactor)
			pub.Post("/auth/refresh", h.refresh)
		})

		gate := middleware.GateConfig{
			Engine:     eng,
			CSRF:       cfg.CSRF,
			OnError:    WriteError,
			MaxBody:    cfg.MaxBodyBytes,
			TrustProxy: cfg.TrustProxy,
		}

		api.Group(func(p chi.Router) {
			p.Use(middleware.Gate(gate), clean)
			p.Get("/auth/me", h.me)
			p.Get("/auth/2fa/status", h.twoFactorStatus)
			p.Post("/auth/2fa/setup", h.beginSetup)
			p.Post("/auth/2fa/confirm", h.confirmSetup)
			p.Post("/auth/2fa/disable", h.disable)
			p.Post("/auth/2fa/backup-codes", h.regenerateBackupCodes)
			p.Post("/auth/password", h.changePassword)
			p.Post("/auth/logout-all", h.logoutAll)
		})

		admin := gate
		admin.StepUp = &skyAuth.StepUpRequirement{TOTP: skyAuth.TOTPRequired}
		admin.Roles = cfg.AdminRoles
		api.Group(func(a chi.Router) {
			a.Use(middleware.Gate(admin), clean)
			a.Post("/admin/users/{id}/status", h.setAccountStatus)
		})
	})

	return r
}
