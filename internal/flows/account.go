package flows

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/MrEthical07/skyAuth/internal/logger"
)

// AccountDeps carries what RunChangePassword needs beyond Core.
type AccountDeps struct {
	Core
	Hasher    PasswordHasher
	MinLength int
	StepUp    StepUpFunc
}

// RunChangePassword replaces the password after a step-up on the current
// one (plus TOTP when enrolled) and revokes existing sessions.
func RunChangePassword(ctx context.Context, userID, current, next, code string, deps AccountDeps) error {
	deps.normalize()
	if deps.Store == nil || deps.Hasher == nil || deps.StepUp == nil {
		return ErrEngineNotReady
	}

	fail := func(err error) error {
		deps.Audit(ctx, EventPasswordChangeFailure, false, userID, err, nil)
		return err
	}

	if deps.MinLength > 0 && utf8.RuneCountInString(next) < deps.MinLength {
		return fail(ErrPasswordPolicy)
	}
	if next == current {
		return fail(ErrPasswordReuse)
	}

	if _, err := deps.StepUp(ctx, userID, StepUpRequirement{Password: true, TOTP: TOTPIfEnrolled}, StepUpProof{Password: current, Code: code}); err != nil {
		return fail(err)
	}

	hash, err := deps.Hasher.Hash(next)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrPasswordPolicy, err))
	}
	if err := deps.Store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fail(storeError(err))
	}

	revokeSessions(ctx, deps.Core, userID)
	deps.MetricInc(deps.Metrics.PasswordChanged)
	deps.Audit(ctx, EventPasswordChanged, true, userID, nil, nil)
	return nil
}

// RunSetAccountStatus applies an admin lock, unlock, activation or
// deactivation. Sessions issued before the change stop validating.
func RunSetAccountStatus(ctx context.Context, userID string, status AccountStatus, locked bool, deps Core) error {
	deps.normalize()
	if deps.Store == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUserNotFound
	}
	if status > AccountLocked {
		return fmt.Errorf("unknown account status %d", status)
	}

	if err := deps.Store.UpdateAccountStatus(ctx, userID, status, locked); err != nil {
		err = storeError(err)
		deps.Audit(ctx, EventAccountStatusChange, false, userID, err, nil)
		return err
	}

	if !locked && deps.Lockout != nil {
		if err := deps.Lockout.Reset(ctx, userID); err != nil {
			deps.Log.Warn("lockout counter reset failed", logger.UserID(userID), zap.Error(err))
		}
	}
	revokeSessions(ctx, deps, userID)
	deps.MetricInc(deps.Metrics.AccountStatusChanged)
	deps.Audit(ctx, EventAccountStatusChange, true, userID, nil, func() map[string]string {
		return map[string]string{"status": status.String(), "locked": boolString(locked)}
	})
	return nil
}

// RunRevokeTokens invalidates every token issued to userID so far.
func RunRevokeTokens(ctx context.Context, userID string, deps Core) error {
	deps.normalize()
	if deps.Store == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return ErrUserNotFound
	}

	version, err := deps.Store.IncrementTokenVersion(ctx, userID)
	if err != nil {
		err = storeError(err)
		deps.Audit(ctx, EventTokensRevoked, false, userID, err, nil)
		return err
	}

	deps.MetricInc(deps.Metrics.TokensRevoked)
	deps.Audit(ctx, EventTokensRevoked, true, userID, nil, func() map[string]string {
		return map[string]string{"token_version": fmt.Sprint(version)}
	})
	return nil
}

func storeError(err error) error {
	if errors.Is(err, ErrUserNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
