package flows

import (
	"context"
)

type StepUpDeps struct {
	Core
	CheckRate RateCheck
	Hasher    PasswordHasher
	TOTP      TOTP
}

// RunStepUp re-verifies the proofs req asks for against the live record and
// returns that record. Every call counts against the auth policy.
func RunStepUp(ctx context.Context, userID string, req StepUpRequirement, proof StepUpProof, deps StepUpDeps) (User, error) {
	deps.normalize()
	if deps.Store == nil || deps.Hasher == nil || deps.TOTP == nil || deps.CheckRate == nil {
		return User{}, ErrEngineNotReady
	}

	if err := deps.CheckRate(ctx, PolicyAuth, "stepup:"+userID); err != nil {
		return User{}, err
	}

	user, err := loadUser(ctx, deps.Store, userID, ErrUserNotFound)
	if err != nil {
		return User{}, err
	}
	if err := StatusError(user); err != nil {
		return User{}, err
	}

	enrolled := user.SecondFactor.Enabled && user.SecondFactor.Secret != ""
	needCode := req.TOTP == TOTPRequired || (req.TOTP == TOTPIfEnrolled && enrolled)
	if req.TOTP == TOTPRequired && !enrolled {
		return User{}, ErrNotEnrolled
	}

	if (req.Password && proof.Password == "") || (needCode && proof.Code == "") {
		return User{}, ErrStepUpRequired
	}

	fail := func(err error) (User, error) {
		deps.MetricInc(deps.Metrics.StepUpFailure)
		deps.Audit(ctx, EventStepUpFailure, false, user.UserID, err, nil)
		return User{}, err
	}

	if req.Password {
		ok, err := deps.Hasher.Verify(proof.Password, user.PasswordHash)
		if err != nil || !ok {
			return fail(ErrInvalidCredentials)
		}
	}
	if needCode {
		ok, err := deps.TOTP.Verify(user.SecondFactor.Secret, proof.Code, deps.Now())
		if err != nil || !ok {
			deps.MetricInc(deps.Metrics.TOTPFailure)
			return fail(ErrInvalidCode)
		}
	}
	return user, nil
}
