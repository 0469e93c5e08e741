package skyAuth

import (
	"context"

	"github.com/MrEthical07/skyAuth/internal/flows"
)

// ChangePassword replaces the password after a step-up on the current
// password, plus a TOTP code when the user is enrolled. Existing sessions
// are revoked.
func (e *Engine) ChangePassword(ctx context.Context, userID, current, next, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return flows.RunChangePassword(ctx, userID, current, next, code, flows.AccountDeps{
		Core:      e.flowCore(),
		Hasher:    e.passwordHash,
		MinLength: e.config.Password.MinLength,
		StepUp:    e.StepUp,
	})
}

// SetAccountStatus locks, unlocks, activates or deactivates an account.
// Tokens issued before the change stop validating.
func (e *Engine) SetAccountStatus(ctx context.Context, userID string, status AccountStatus, locked bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	return flows.RunSetAccountStatus(ctx, userID, status, locked, e.flowCore())
}

// RevokeTokens logs userID out everywhere.
func (e *Engine) RevokeTokens(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return flows.RunRevokeTokens(ctx, userID, e.flowCore())
}

// HashPassword hashes a password with the engine's parameters. Stores use it
// when seeding accounts.
func (e *Engine) HashPassword(password string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	return e.passwordHash.Hash(password)
}
