package middleware

import (
	"net/http"

	skyAuth "github.com/MrEthical07/skyAuth"
	"github.com/MrEthical07/skyAuth/csrf"
)

// GateEngine is the engine surface the full gate needs. *skyAuth.Engine
// satisfies it.
type GateEngine interface {
	RateChecker
	Validator
	StepUpper
	SecurityEmitter
}

type GateConfig struct {
	Engine     GateEngine
	CSRF       *csrf.Guard
	OnError    ErrorWriter
	MaxBody    int64
	TrustProxy bool

	// StepUp, when non-nil, is enforced after authentication.
	StepUp *skyAuth.StepUpRequirement
	// Roles, when non-empty, admits only users holding one of them.
	Roles []string
}

// Gate composes the protected-route pipeline. Ordering matters: the CSRF
// check precedes authentication so a forged write is refused even when the
// browser attaches a valid token.
func Gate(cfg GateConfig) Middleware {
	mws := []Middleware{
		LimitBody(cfg.MaxBody, cfg.OnError),
		ClientContext(cfg.TrustProxy),
		RateLimit(cfg.Engine, cfg.TrustProxy, cfg.OnError),
	}
	if cfg.CSRF != nil {
		mws = append(mws, CSRF(cfg.CSRF, cfg.Engine, cfg.OnError))
	}
	mws = append(mws, Authenticate(cfg.Engine, cfg.OnError))
	if cfg.StepUp != nil {
		mws = append(mws, RequireStepUp(cfg.Engine, *cfg.StepUp, cfg.OnError))
	}
	if len(cfg.Roles) > 0 {
		mws = append(mws, RequireRoles(cfg.Engine, cfg.OnError, cfg.Roles...))
	}

	return func(next http.Handler) http.Handler {
		return Chain(next, mws...)
	}
}
