package skyAuth

import (
	"context"

	"github.com/MrEthical07/skyAuth/internal/flows"
)

// BeginTwoFactorSetup starts, or restarts, second-factor enrollment. The
// returned secret and backup codes are shown once and never stored in the
// clear.
func (e *Engine) BeginTwoFactorSetup(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return flows.RunBeginSetup(ctx, userID, e.secondFactorDeps())
}

// ConfirmTwoFactorSetup activates a pending enrollment. Sessions issued
// before confirmation stop validating.
func (e *Engine) ConfirmTwoFactorSetup(ctx context.Context, userID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return flows.RunConfirmSetup(ctx, userID, code, e.secondFactorDeps())
}

// DisableTwoFactor needs the current password and a current TOTP code.
func (e *Engine) DisableTwoFactor(ctx context.Context, userID, password, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return flows.RunDisable(ctx, userID, StepUpProof{Password: password, Code: code}, e.secondFactorDeps())
}

// RegenerateBackupCodes replaces all backup codes after a password check.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, userID, password string) ([]string, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return flows.RunRegenerateBackupCodes(ctx, userID, password, e.secondFactorDeps())
}

func (e *Engine) TwoFactorStatus(ctx context.Context, userID string) (*TwoFactorStatus, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return flows.RunTwoFactorStatus(ctx, userID, e.secondFactorDeps())
}

// StepUp re-verifies the proofs req asks for and returns the live record.
// Sensitive operations compose with it instead of checking proofs
// themselves.
func (e *Engine) StepUp(ctx context.Context, userID string, req StepUpRequirement, proof StepUpProof) (UserRecord, error) {
	if err := e.ready(); err != nil {
		return UserRecord{}, err
	}
	return flows.RunStepUp(ctx, userID, req, proof, flows.StepUpDeps{
		Core:      e.flowCore(),
		CheckRate: e.CheckRate,
		Hasher:    e.passwordHash,
		TOTP:      e.totp,
	})
}

func (e *Engine) secondFactorDeps() flows.SecondFactorDeps {
	return flows.SecondFactorDeps{
		Core:             e.flowCore(),
		TOTP:             e.totp,
		BackupCodeCount:  e.config.TwoFactor.BackupCodeCount,
		BackupCodeLength: e.config.TwoFactor.BackupCodeLength,
		StepUp:           e.StepUp,
	}
}
