package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/skyAuth/internal"
	"github.com/MrEthical07/skyAuth/internal/logger"
	"github.com/MrEthical07/skyAuth/internal/stores"
)

// Rate policy names.
const (
	PolicyGeneral   = "general"
	PolicyAuth      = "auth"
	PolicyAdminAuth = "admin_auth"
)

// LoginDeps carries what RunLogin needs beyond Core.
type LoginDeps struct {
	Core

	// Admin switches to the admin_auth policy and requires one of AdminRoles.
	Admin      bool
	AdminRoles []string

	CheckRate      RateCheck
	ClientIP       func(context.Context) string
	Hasher         PasswordHasher
	DummyHash      string
	UpgradeOnLogin bool
	IssuePair      TokenIssuer
	Challenges     ChallengeStore
	ChallengeTTL   time.Duration
}

// NormalizeIdentifier folds an identifier to the form used for lookups and
// rate-limit keys.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// LoginRateKey is the auth policy key for a login attempt.
func LoginRateKey(ip, identifier string) string {
	if ip == "" {
		ip = "unknown"
	}
	return "login:" + ip + "|" + NormalizeIdentifier(identifier)
}

// RunLogin verifies a password login. Every attempt counts against the rate
// policy, and the password hash is always computed so unknown identifiers
// take the same time as known ones.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) (*LoginResult, error) {
	deps.normalize()
	if deps.Store == nil || deps.Hasher == nil || deps.IssuePair == nil || deps.Challenges == nil || deps.CheckRate == nil {
		return nil, ErrEngineNotReady
	}
	if deps.ClientIP == nil {
		deps.ClientIP = func(context.Context) string { return "" }
	}

	policy, successEvent, failureEvent := PolicyAuth, EventLoginSuccess, EventLoginFailure
	if deps.Admin {
		policy, successEvent, failureEvent = PolicyAdminAuth, EventAdminLoginSuccess, EventAdminLoginFailure
	}

	fail := func(userID string, err error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.Audit(ctx, failureEvent, false, userID, err, nil)
		return nil, err
	}

	if err := deps.CheckRate(ctx, policy, LoginRateKey(deps.ClientIP(ctx), req.Identifier)); err != nil {
		return nil, err
	}

	identifier := NormalizeIdentifier(req.Identifier)
	user, err := deps.Store.GetUserByIdentifier(ctx, identifier)
	found := err == nil && identifier != ""
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return fail("", fmt.Errorf("%w: %v", ErrStoreUnavailable, err))
	}

	encoded := deps.DummyHash
	if found {
		encoded = user.PasswordHash
	}
	ok, verifyErr := deps.Hasher.Verify(req.Password, encoded)
	if !found || verifyErr != nil || !ok {
		if found {
			recordPasswordFailure(ctx, user, deps.Core)
		}
		return fail(user.UserID, ErrInvalidCredentials)
	}
	if deps.Admin && !user.HasAnyRole(deps.AdminRoles) {
		return fail(user.UserID, ErrInvalidCredentials)
	}
	if err := StatusError(user); err != nil {
		return fail(user.UserID, err)
	}

	if deps.Lockout != nil {
		if err := deps.Lockout.Reset(ctx, user.UserID); err != nil {
			deps.Log.Warn("lockout counter reset failed", logger.UserID(user.UserID), zap.Error(err))
		}
	}
	if deps.UpgradeOnLogin && deps.Hasher.NeedsUpgrade(user.PasswordHash) {
		upgradePasswordHash(ctx, user.UserID, req.Password, deps)
	}

	if user.SecondFactor.Enabled {
		return issueChallenge(ctx, user, req.RememberMe, deps)
	}

	pair, err := deps.IssuePair(ctx, user, req.RememberMe)
	if err != nil {
		return fail(user.UserID, err)
	}
	profile := Public(user)

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.Audit(ctx, successEvent, true, user.UserID, nil, func() map[string]string {
		return map[string]string{"remember_me": boolString(req.RememberMe)}
	})
	return &LoginResult{Tokens: &pair, User: &profile}, nil
}

// recordPasswordFailure counts a wrong password against an existing account
// and locks it at the threshold. Counter failures are logged and do not
// change the login outcome.
func recordPasswordFailure(ctx context.Context, user User, core Core) {
	if core.Lockout == nil || user.Locked {
		return
	}
	reached, err := core.Lockout.RecordFailure(ctx, user.UserID)
	if err != nil {
		core.Log.Warn("lockout counter unavailable", logger.UserID(user.UserID), zap.Error(err))
		return
	}
	if !reached {
		return
	}
	if err := core.Store.UpdateAccountStatus(ctx, user.UserID, user.Status, true); err != nil {
		core.Log.Error("automatic lockout failed", logger.UserID(user.UserID), zap.Error(err))
		core.Audit(ctx, EventAccountAutoLocked, false, user.UserID, storeError(err), nil)
		return
	}
	revokeSessions(ctx, core, user.UserID)
	core.MetricInc(core.Metrics.AccountAutoLocked)
	core.Audit(ctx, EventAccountAutoLocked, true, user.UserID, nil, nil)
}

// upgradePasswordHash rewrites a legacy hash after a successful login. The
// login succeeds whether or not the write does.
func upgradePasswordHash(ctx context.Context, userID, password string, deps LoginDeps) {
	upgraded, err := deps.Hasher.Hash(password)
	if err == nil {
		err = deps.Store.UpdatePasswordHash(ctx, userID, upgraded)
	}
	if err != nil {
		deps.Log.Warn("password hash upgrade failed", logger.UserID(userID), zap.Error(err))
		deps.Audit(ctx, EventPasswordRehash, false, userID, storeError(err), nil)
		return
	}
	deps.Audit(ctx, EventPasswordRehash, true, userID, nil, nil)
}

func issueChallenge(ctx context.Context, user User, rememberMe bool, deps LoginDeps) (*LoginResult, error) {
	ttl := deps.ChallengeTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	token, err := internal.NewChallengeToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	record := &stores.Challenge{
		UserID:     user.UserID,
		SecretHash: token.SecretHash,
		RememberMe: rememberMe,
		ExpiresAt:  deps.Now().Add(ttl).UnixMilli(),
	}
	if err := deps.Challenges.Save(ctx, token.ID, record, ttl); err != nil {
		deps.Audit(ctx, EventTwoFactorRequired, false, user.UserID, ErrChallengeUnavailable, nil)
		return nil, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}

	deps.MetricInc(deps.Metrics.ChallengeIssued)
	deps.Audit(ctx, EventTwoFactorRequired, true, user.UserID, nil, nil)
	return &LoginResult{
		RequiresTwoFactor: true,
		UserID:            user.UserID,
		TempToken:         token.Token,
		ExpiresIn:         ttl,
	}, nil
}

// loadUser reads a user by id and maps store failures to the flow errors.
func loadUser(ctx context.Context, store UserStore, userID string, notFound error) (User, error) {
	if userID == "" {
		return User{}, notFound
	}
	user, err := store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, notFound
		}
		return User{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
