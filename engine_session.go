package skyAuth

import (
	"context"

	"github.com/MrEthical07/skyAuth/internal/flows"
)

// Validate verifies an access token and reloads the user it names. Status
// and roles come from the live record, not from the token.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.metrics.enableLatency {
		start := e.now()
		defer func() {
			e.metrics.Observe(MetricValidateLatency, e.now().Sub(start))
		}()
	}
	return flows.RunValidate(ctx, accessToken, e.sessionDeps())
}

// Refresh exchanges a refresh token for a new pair.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return flows.RunRefresh(ctx, refreshToken, e.sessionDeps())
}

func (e *Engine) sessionDeps() flows.SessionDeps {
	return flows.SessionDeps{
		Core:              e.flowCore(),
		Parse:             e.jwtManager.Parse,
		CheckTokenVersion: e.config.Security.EnableTokenVersionCheck,
		IssuePair:         e.issuePair,
	}
}
