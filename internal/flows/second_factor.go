package flows

import (
	"context"
	"fmt"
	"time"
)

const maxSecondFactorRetries = 3

// StepUpFunc is RunStepUp bound to its dependencies.
type StepUpFunc func(ctx context.Context, userID string, req StepUpRequirement, proof StepUpProof) (User, error)

type SecondFactorDeps struct {
	Core
	TOTP             TOTP
	BackupCodeCount  int
	BackupCodeLength int
	RandomIndex      func(int) (int, error)
	StepUp           StepUpFunc
}

func (d *SecondFactorDeps) ready() bool {
	d.normalize()
	if d.BackupCodeCount <= 0 {
		d.BackupCodeCount = 10
	}
	if d.BackupCodeLength <= 0 {
		d.BackupCodeLength = 10
	}
	return d.Store != nil && d.TOTP != nil && d.StepUp != nil
}

// RunBeginSetup starts enrollment, or restarts a pending one, and returns
// the secret and plaintext backup codes. They are not recoverable later.
func RunBeginSetup(ctx context.Context, userID string, deps SecondFactorDeps) (*TwoFactorSetup, error) {
	if !deps.ready() {
		return nil, ErrEngineNotReady
	}

	var setup *TwoFactorSetup
	err := updateSecondFactor(ctx, deps.Core, userID, func(user User) (SecondFactor, error) {
		if user.SecondFactor.State() == SecondFactorActive {
			return SecondFactor{}, ErrAlreadyEnabled
		}
		secret, uri, err := deps.TOTP.Generate(user.Identifier)
		if err != nil {
			return SecondFactor{}, fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
		}
		plain, stored, err := NewBackupCodeSet(user.UserID, deps.BackupCodeCount, deps.BackupCodeLength, deps.RandomIndex)
		if err != nil {
			return SecondFactor{}, fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
		}
		setup = &TwoFactorSetup{Secret: secret, ProvisioningURI: uri, BackupCodes: plain}

		next := user.SecondFactor.Clone()
		next.TempSecret = secret
		next.Secret = ""
		next.Enabled = false
		next.BackupCodes = stored
		return next, nil
	})
	if err != nil {
		deps.Audit(ctx, EventTwoFactorSetupStarted, false, userID, err, nil)
		return nil, err
	}

	deps.Audit(ctx, EventTwoFactorSetupStarted, true, userID, nil, nil)
	deps.Audit(ctx, EventBackupCodesGenerated, true, userID, nil, func() map[string]string {
		return map[string]string{"count": fmt.Sprint(len(setup.BackupCodes))}
	})
	return setup, nil
}

// RunConfirmSetup activates a pending enrollment once code verifies against
// the pending secret. Existing sessions are revoked on success.
func RunConfirmSetup(ctx context.Context, userID, code string, deps SecondFactorDeps) error {
	if !deps.ready() {
		return ErrEngineNotReady
	}

	fail := func(err error) error {
		deps.Audit(ctx, EventTwoFactorConfirmFailed, false, userID, err, nil)
		return err
	}

	user, err := loadUser(ctx, deps.Store, userID, ErrUserNotFound)
	if err != nil {
		return fail(err)
	}
	if err := StatusError(user); err != nil {
		return fail(err)
	}
	current := user.SecondFactor
	if current.TempSecret == "" {
		return fail(ErrSetupNotStarted)
	}

	ok, err := deps.TOTP.Verify(current.TempSecret, code, deps.Now())
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.TOTPFailure)
		return fail(ErrInvalidCode)
	}

	next := current.Clone()
	next.Secret = current.TempSecret
	next.TempSecret = ""
	next.Enabled = true
	next.EnabledAt = deps.Now()
	next.DisabledAt = time.Time{}

	applied, err := deps.Store.ConditionalUpdateSecondFactor(ctx, userID, current.Version, next)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err))
	}
	if !applied {
		// The secret we verified against has been replaced or promoted.
		return fail(ErrInvalidCode)
	}

	revokeSessions(ctx, deps.Core, userID)
	deps.MetricInc(deps.Metrics.TwoFactorEnabled)
	deps.Audit(ctx, EventTwoFactorEnabled, true, userID, nil, nil)
	return nil
}

// RunDisable clears the second factor after a password and TOTP step-up.
func RunDisable(ctx context.Context, userID string, proof StepUpProof, deps SecondFactorDeps) error {
	if !deps.ready() {
		return ErrEngineNotReady
	}

	_, err := deps.StepUp(ctx, userID, StepUpRequirement{Password: true, TOTP: TOTPRequired}, proof)
	if err != nil {
		return err
	}

	err = updateSecondFactor(ctx, deps.Core, userID, func(user User) (SecondFactor, error) {
		if user.SecondFactor.State() != SecondFactorActive {
			return SecondFactor{}, ErrNotEnrolled
		}
		return SecondFactor{DisabledAt: deps.Now()}, nil
	})
	if err != nil {
		return err
	}

	revokeSessions(ctx, deps.Core, userID)
	deps.MetricInc(deps.Metrics.TwoFactorDisabled)
	deps.Audit(ctx, EventTwoFactorDisabled, true, userID, nil, nil)
	return nil
}

// RunRegenerateBackupCodes replaces every stored backup code after a
// password step-up.
func RunRegenerateBackupCodes(ctx context.Context, userID, password string, deps SecondFactorDeps) ([]string, error) {
	if !deps.ready() {
		return nil, ErrEngineNotReady
	}

	user, err := deps.StepUp(ctx, userID, StepUpRequirement{Password: true}, StepUpProof{Password: password})
	if err != nil {
		return nil, err
	}
	if user.SecondFactor.State() != SecondFactorActive {
		return nil, ErrNotEnrolled
	}

	var plain []string
	err = updateSecondFactor(ctx, deps.Core, userID, func(user User) (SecondFactor, error) {
		if user.SecondFactor.State() != SecondFactorActive {
			return SecondFactor{}, ErrNotEnrolled
		}
		codes, stored, err := NewBackupCodeSet(user.UserID, deps.BackupCodeCount, deps.BackupCodeLength, deps.RandomIndex)
		if err != nil {
			return SecondFactor{}, fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
		}
		plain = codes
		next := user.SecondFactor.Clone()
		next.BackupCodes = stored
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	deps.MetricInc(deps.Metrics.BackupCodesRegenerated)
	deps.Audit(ctx, EventBackupCodesGenerated, true, userID, nil, func() map[string]string {
		return map[string]string{"count": fmt.Sprint(len(plain)), "regenerated": "true"}
	})
	return plain, nil
}

// RunTwoFactorStatus reports the second factor state of userID and how many
// backup codes are still unused.
func RunTwoFactorStatus(ctx context.Context, userID string, deps SecondFactorDeps) (*TwoFactorStatus, error) {
	deps.normalize()
	if deps.Store == nil {
		return nil, ErrEngineNotReady
	}
	user, err := loadUser(ctx, deps.Store, userID, ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	f := user.SecondFactor
	return &TwoFactorStatus{
		State:                f.State(),
		Enabled:              f.State() == SecondFactorActive,
		BackupCodesRemaining: f.RemainingBackupCodes(),
		EnabledAt:            f.EnabledAt,
	}, nil
}

// updateSecondFactor applies mutate to the live record with a version
// predicate, reloading and retrying when a concurrent transition wins.
func updateSecondFactor(ctx context.Context, core Core, userID string, mutate func(User) (SecondFactor, error)) error {
	for i := 0; i < maxSecondFactorRetries; i++ {
		user, err := loadUser(ctx, core.Store, userID, ErrUserNotFound)
		if err != nil {
			return err
		}
		if err := StatusError(user); err != nil {
			return err
		}
		next, err := mutate(user)
		if err != nil {
			return err
		}
		applied, err := core.Store.ConditionalUpdateSecondFactor(ctx, userID, user.SecondFactor.Version, next)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
		}
		if applied {
			return nil
		}
	}
	return ErrSecondFactorUnavailable
}

// revokeSessions advances the token version. A failure is audited and does
// not undo the transition that triggered it.
func revokeSessions(ctx context.Context, core Core, userID string) {
	if _, err := core.Store.IncrementTokenVersion(ctx, userID); err != nil {
		core.Audit(ctx, EventTokensRevoked, false, userID, fmt.Errorf("%w: %v", ErrStoreUnavailable, err), nil)
	}
}
