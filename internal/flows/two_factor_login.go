package flows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/skyAuth/internal"
	"github.com/MrEthical07/skyAuth/internal/logger"
	"github.com/MrEthical07/skyAuth/internal/stores"
)

// TwoFactorLoginDeps carries what RunVerifyTwoFactorLogin needs beyond Core.
type TwoFactorLoginDeps struct {
	Core
	CheckRate   RateCheck
	ClientIP    func(context.Context) string
	Challenges  ChallengeStore
	MaxAttempts int
	TOTP        TOTP
	IssuePair   TokenIssuer
}

// RunVerifyTwoFactorLogin completes a login that was parked on a pending
// challenge. A session pair is only ever issued after the submitted code
// verifies and this call wins the challenge consumption.
func RunVerifyTwoFactorLogin(ctx context.Context, req TwoFactorLoginRequest, deps TwoFactorLoginDeps) (*TwoFactorLoginResult, error) {
	deps.normalize()
	if deps.Store == nil || deps.Challenges == nil || deps.TOTP == nil || deps.IssuePair == nil || deps.CheckRate == nil {
		return nil, ErrEngineNotReady
	}
	if deps.ClientIP == nil {
		deps.ClientIP = func(context.Context) string { return "" }
	}

	ip := deps.ClientIP(ctx)
	if ip == "" {
		ip = "unknown"
	}
	if err := deps.CheckRate(ctx, PolicyAuth, "2fa:"+ip+"|"+req.UserID); err != nil {
		return nil, err
	}

	fail := func(userID string, err error) (*TwoFactorLoginResult, error) {
		deps.MetricInc(deps.Metrics.TwoFactorLoginFailure)
		deps.Audit(ctx, EventTwoFactorLoginFailure, false, userID, err, func() map[string]string {
			return map[string]string{
				"method":      methodName(req.IsBackupCode),
				"code_prefix": logger.Redact(req.Code),
			}
		})
		return nil, err
	}

	id, secretHash, err := internal.ParseChallengeToken(req.TempToken)
	if err != nil {
		return fail(req.UserID, ErrChallengeInvalid)
	}
	challenge, err := deps.Challenges.Get(ctx, id, secretHash)
	if err != nil {
		return fail(req.UserID, challengeError(err))
	}
	if req.UserID == "" || challenge.UserID != req.UserID {
		return fail(req.UserID, ErrChallengeInvalid)
	}

	user, err := loadUser(ctx, deps.Store, challenge.UserID, ErrChallengeInvalid)
	if err != nil {
		return fail(challenge.UserID, err)
	}
	if err := StatusError(user); err != nil {
		_, _ = deps.Challenges.Consume(ctx, id)
		return fail(user.UserID, err)
	}
	if !user.SecondFactor.Enabled || user.SecondFactor.Secret == "" {
		_, _ = deps.Challenges.Consume(ctx, id)
		return fail(user.UserID, ErrNotEnrolled)
	}

	if req.IsBackupCode {
		// Claim the challenge before spending the code so a lost race
		// leaves the backup code unused.
		if err := claimChallenge(ctx, id, deps); err != nil {
			return fail(user.UserID, err)
		}
		if err := verifyBackupCode(ctx, user.UserID, req.Code, deps); err != nil {
			restoreChallenge(ctx, id, *challenge, !errors.Is(err, ErrSecondFactorUnavailable), err, deps)
			return fail(user.UserID, err)
		}
	} else {
		err = verifyLoginTOTP(ctx, user, req.Code, deps)
		if err != nil {
			exceeded, recErr := deps.Challenges.RecordFailure(ctx, id, deps.MaxAttempts)
			if recErr == nil && exceeded {
				deps.MetricInc(deps.Metrics.ChallengeExhausted)
				deps.Audit(ctx, EventTwoFactorExhausted, false, user.UserID, err, nil)
			}
			return fail(user.UserID, err)
		}
		if err := claimChallenge(ctx, id, deps); err != nil {
			return fail(user.UserID, err)
		}
	}

	pair, err := deps.IssuePair(ctx, user, challenge.RememberMe)
	if err != nil {
		return fail(user.UserID, err)
	}

	result := &TwoFactorLoginResult{Tokens: pair, User: Public(user)}
	if req.IsBackupCode {
		remaining := user.SecondFactor.RemainingBackupCodes() - 1
		if fresh, err := deps.Store.GetUserByID(ctx, user.UserID); err == nil {
			remaining = fresh.SecondFactor.RemainingBackupCodes()
		}
		if remaining < 0 {
			remaining = 0
		}
		result.BackupCodesRemaining = &remaining
	}

	deps.MetricInc(deps.Metrics.TwoFactorLoginSuccess)
	deps.Audit(ctx, EventTwoFactorLoginSuccess, true, user.UserID, nil, func() map[string]string {
		return map[string]string{"method": methodName(req.IsBackupCode)}
	})
	return result, nil
}

func claimChallenge(ctx context.Context, id string, deps TwoFactorLoginDeps) error {
	won, err := deps.Challenges.Consume(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	if !won {
		return ErrChallengeInvalid
	}
	return nil
}

// restoreChallenge puts back a challenge claimed for a backup code that did
// not verify. A wrong code counts as an attempt; once the attempt cap is
// reached the challenge stays consumed.
func restoreChallenge(ctx context.Context, id string, record stores.Challenge, countFailure bool, cause error, deps TwoFactorLoginDeps) {
	if countFailure {
		record.Attempts++
		if deps.MaxAttempts > 0 && int(record.Attempts) >= deps.MaxAttempts {
			deps.MetricInc(deps.Metrics.ChallengeExhausted)
			deps.Audit(ctx, EventTwoFactorExhausted, false, record.UserID, cause, nil)
			return
		}
	}

	ttl := time.UnixMilli(record.ExpiresAt).Sub(deps.Now())
	if ttl <= 0 {
		return
	}
	if err := deps.Challenges.Save(ctx, id, &record, ttl); err != nil {
		deps.Log.Warn("challenge restore failed", logger.UserID(record.UserID), zap.Error(err))
	}
}

func verifyLoginTOTP(ctx context.Context, user User, code string, deps TwoFactorLoginDeps) error {
	ok, err := deps.TOTP.Verify(user.SecondFactor.Secret, code, deps.Now())
	if err != nil || !ok {
		deps.MetricInc(deps.Metrics.TOTPFailure)
		return ErrInvalidCode
	}
	return nil
}

// verifyBackupCode consumes the code in one conditional store write so two
// concurrent submissions of the same code cannot both pass.
func verifyBackupCode(ctx context.Context, userID, code string, deps TwoFactorLoginDeps) error {
	canonical := CanonicalizeBackupCode(code)
	if canonical == "" {
		deps.MetricInc(deps.Metrics.BackupCodeFailed)
		deps.Audit(ctx, EventBackupCodeFailed, false, userID, ErrInvalidOrUsedBackupCode, nil)
		return ErrInvalidOrUsedBackupCode
	}

	ok, err := deps.Store.ConsumeBackupCode(ctx, userID, BackupCodeHash(userID, canonical), deps.Now())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSecondFactorUnavailable, err)
	}
	if !ok {
		deps.MetricInc(deps.Metrics.BackupCodeFailed)
		deps.Audit(ctx, EventBackupCodeFailed, false, userID, ErrInvalidOrUsedBackupCode, nil)
		return ErrInvalidOrUsedBackupCode
	}

	deps.MetricInc(deps.Metrics.BackupCodeUsed)
	deps.Audit(ctx, EventBackupCodeUsed, true, userID, nil, nil)
	return nil
}

func challengeError(err error) error {
	switch {
	case errors.Is(err, stores.ErrChallengeExpired):
		return ErrChallengeExpired
	case errors.Is(err, stores.ErrChallengeNotFound):
		return ErrChallengeInvalid
	default:
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
}

func methodName(backup bool) string {
	if backup {
		return "backup_code"
	}
	return "totp"
}
