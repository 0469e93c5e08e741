package skyAuth

import (
	"context"

	"github.com/MrEthical07/skyAuth/internal/flows"
)

// Login verifies a password login. When the user has an active second
// factor no tokens are issued; the result carries a pending challenge for
// VerifyTwoFactorLogin instead.
//
// Every attempt, successful or not, counts against the auth rate policy for
// the client IP and identifier.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	return e.login(ctx, req, false)
}

// LoginAdmin is Login under the admin_auth policy. A user without one of
// Config.Security.AdminRoles gets ErrInvalidCredentials.
func (e *Engine) LoginAdmin(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	return e.login(ctx, req, true)
}

func (e *Engine) login(ctx context.Context, req LoginRequest, admin bool) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return flows.RunLogin(ctx, req, flows.LoginDeps{
		Core:           e.flowCore(),
		Admin:          admin,
		AdminRoles:     e.config.Security.AdminRoles,
		CheckRate:      e.CheckRate,
		ClientIP:       clientIPFromContext,
		Hasher:         e.passwordHash,
		DummyHash:      e.dummyHash,
		UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		IssuePair:      e.issuePair,
		Challenges:     e.challenges,
		ChallengeTTL:   e.config.TwoFactor.ChallengeTTL,
	})
}

// VerifyTwoFactorLogin completes a login parked on a pending challenge.
// The challenge is single use; after TwoFactor.ChallengeMaxAttempts wrong
// codes it is destroyed.
func (e *Engine) VerifyTwoFactorLogin(ctx context.Context, req TwoFactorLoginRequest) (*TwoFactorLoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return flows.RunVerifyTwoFactorLogin(ctx, req, flows.TwoFactorLoginDeps{
		Core:        e.flowCore(),
		CheckRate:   e.CheckRate,
		ClientIP:    clientIPFromContext,
		Challenges:  e.challenges,
		MaxAttempts: e.config.TwoFactor.ChallengeMaxAttempts,
		TOTP:        e.totp,
		IssuePair:   e.issuePair,
	})
}
