package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/skyAuth/jwt"
)

// TokenParser verifies a signed token of the wanted type.
type TokenParser func(token string, want jwt.TokenType) (*jwt.Claims, error)

type SessionDeps struct {
	Core
	Parse             TokenParser
	CheckTokenVersion bool
	IssuePair         TokenIssuer
}

// RunValidate verifies an access token and re-reads the live record so
// status changes apply before the token expires.
func RunValidate(ctx context.Context, token string, deps SessionDeps) (*AuthResult, error) {
	deps.normalize()
	if deps.Store == nil || deps.Parse == nil {
		return nil, ErrEngineNotReady
	}

	claims, user, err := verifySession(ctx, token, jwt.TypeAccess, deps)
	if err != nil {
		return nil, err
	}

	result := &AuthResult{
		UserID:           user.UserID,
		Identifier:       user.Identifier,
		Roles:            append([]string(nil), user.Roles...),
		TwoFactorEnabled: user.SecondFactor.Enabled,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time
	}
	return result, nil
}

// RunRefresh exchanges a refresh token for a new pair. The remember-me
// lifetime carries over from the original login.
func RunRefresh(ctx context.Context, token string, deps SessionDeps) (*TokenPair, error) {
	deps.normalize()
	if deps.Store == nil || deps.Parse == nil || deps.IssuePair == nil {
		return nil, ErrEngineNotReady
	}

	claims, user, err := verifySession(ctx, token, jwt.TypeRefresh, deps)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.Audit(ctx, EventRefreshFailure, false, "", err, nil)
		return nil, err
	}

	pair, err := deps.IssuePair(ctx, user, claims.RememberMe)
	if err != nil {
		deps.MetricInc(deps.Metrics.RefreshFailure)
		deps.Audit(ctx, EventRefreshFailure, false, user.UserID, err, nil)
		return nil, err
	}

	deps.MetricInc(deps.Metrics.RefreshSuccess)
	deps.Audit(ctx, EventRefreshSuccess, true, user.UserID, nil, nil)
	return &pair, nil
}

func verifySession(ctx context.Context, token string, want jwt.TokenType, deps SessionDeps) (*jwt.Claims, User, error) {
	claims, err := deps.Parse(token, want)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, User{}, ErrTokenExpired
		}
		return nil, User{}, ErrTokenInvalid
	}

	user, err := loadUser(ctx, deps.Store, claims.UID, ErrTokenInvalid)
	if err != nil {
		return nil, User{}, err
	}
	if err := StatusError(user); err != nil {
		return nil, User{}, err
	}
	if deps.CheckTokenVersion && claims.TokenVersion != user.TokenVersion {
		deps.MetricInc(deps.Metrics.TokenVersionMismatch)
		return nil, User{}, ErrTokenInvalid
	}
	return claims, user, nil
}
