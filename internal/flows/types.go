package flows

import (
	"context"
	"time"
)

// AccountStatus is the lifecycle state of a user account.
type AccountStatus uint8

const (
	AccountActive AccountStatus = iota
	AccountInactive
	AccountLocked
)

func (s AccountStatus) String() string {
	switch s {
	case AccountActive:
		return "active"
	case AccountInactive:
		return "inactive"
	case AccountLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// ParseAccountStatus maps the wire names used by the admin API.
func ParseAccountStatus(raw string) (AccountStatus, bool) {
	switch raw {
	case "active":
		return AccountActive, true
	case "inactive":
		return AccountInactive, true
	case "locked":
		return AccountLocked, true
	default:
		return 0, false
	}
}

// SecondFactorState is derived from the stored second-factor fields.
type SecondFactorState uint8

const (
	SecondFactorNotEnrolled SecondFactorState = iota
	SecondFactorPendingActivation
	SecondFactorActive
	SecondFactorDisabled
)

func (s SecondFactorState) String() string {
	switch s {
	case SecondFactorPendingActivation:
		return "pending_activation"
	case SecondFactorActive:
		return "active"
	case SecondFactorDisabled:
		return "disabled"
	default:
		return "not_enrolled"
	}
}

// BackupCode is one stored recovery code. Only the digest is persisted.
type BackupCode struct {
	Hash   [32]byte
	Used   bool
	UsedAt time.Time
}

// SecondFactor is the second-factor part of a user record.
//
// Secret is set iff Enabled is true, and TempSecret is empty once Secret is
// set. Version is advanced by the store on every applied conditional update.
type SecondFactor struct {
	TempSecret  string
	Secret      string
	Enabled     bool
	BackupCodes []BackupCode
	EnabledAt   time.Time
	DisabledAt  time.Time
	Version     uint32
}

func (f SecondFactor) State() SecondFactorState {
	switch {
	case f.Enabled && f.Secret != "":
		return SecondFactorActive
	case f.TempSecret != "":
		return SecondFactorPendingActivation
	case !f.DisabledAt.IsZero():
		return SecondFactorDisabled
	default:
		return SecondFactorNotEnrolled
	}
}

// RemainingBackupCodes counts unused codes.
func (f SecondFactor) RemainingBackupCodes() int {
	n := 0
	for _, code := range f.BackupCodes {
		if !code.Used {
			n++
		}
	}
	return n
}

// Clone returns a copy that shares no slice memory with f.
func (f SecondFactor) Clone() SecondFactor {
	out := f
	if f.BackupCodes != nil {
		out.BackupCodes = make([]BackupCode, len(f.BackupCodes))
		copy(out.BackupCodes, f.BackupCodes)
	}
	return out
}

// User is the security-relevant subset of a user account.
type User struct {
	UserID       string
	Identifier   string
	DisplayName  string
	PasswordHash string
	Status       AccountStatus
	Locked       bool
	Roles        []string
	TokenVersion uint32
	SecondFactor SecondFactor
}

// HasAnyRole reports whether u holds one of roles.
func (u User) HasAnyRole(roles []string) bool {
	for _, have := range u.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// UserStore is the credential store accessor. Implementations return
// ErrUserNotFound for unknown users.
type UserStore interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
	// ConditionalUpdateSecondFactor replaces the second-factor state only if
	// its stored Version still equals expectedVersion. It reports whether the
	// write was applied and advances Version when it was.
	ConditionalUpdateSecondFactor(ctx context.Context, userID string, expectedVersion uint32, next SecondFactor) (bool, error)
	// ConsumeBackupCode marks the unused code with the given hash as used in a
	// single atomic step. It reports false when no unused code matched.
	ConsumeBackupCode(ctx context.Context, userID string, codeHash [32]byte, usedAt time.Time) (bool, error)
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
	UpdateAccountStatus(ctx context.Context, userID string, status AccountStatus, locked bool) error
	// IncrementTokenVersion advances the version embedded in issued tokens and
	// returns the new value.
	IncrementTokenVersion(ctx context.Context, userID string) (uint32, error)
}

// PublicUser is the profile returned alongside a session.
type PublicUser struct {
	UserID           string   `json:"id"`
	Identifier       string   `json:"identifier"`
	DisplayName      string   `json:"displayName,omitempty"`
	Roles            []string `json:"roles"`
	TwoFactorEnabled bool     `json:"twoFactorEnabled"`
}

// Public projects u to its public profile.
func Public(u User) PublicUser {
	return PublicUser{
		UserID:           u.UserID,
		Identifier:       u.Identifier,
		DisplayName:      u.DisplayName,
		Roles:            append([]string{}, u.Roles...),
		TwoFactorEnabled: u.SecondFactor.Enabled,
	}
}

// TokenPair is a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    time.Duration `json:"-"`
}

type LoginRequest struct {
	Identifier string
	Password   string
	RememberMe bool
}

// LoginResult is either a session or a pending second-factor challenge.
type LoginResult struct {
	Tokens *TokenPair
	User   *PublicUser

	RequiresTwoFactor bool
	UserID            string
	TempToken         string
	ExpiresIn         time.Duration
}

type TwoFactorLoginRequest struct {
	UserID       string
	TempToken    string
	Code         string
	IsBackupCode bool
}

// TwoFactorLoginResult is returned after a satisfied second factor.
// BackupCodesRemaining is set only when a backup code was used.
type TwoFactorLoginResult struct {
	Tokens               TokenPair
	User                 PublicUser
	BackupCodesRemaining *int
}

// TwoFactorSetup is returned once by setup. It is the only time the secret
// and plaintext backup codes leave the engine.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
	BackupCodes     []string
}

type TwoFactorStatus struct {
	State                SecondFactorState
	Enabled              bool
	BackupCodesRemaining int
	EnabledAt            time.Time
}

// AuthResult is the verified identity behind an access token.
type AuthResult struct {
	UserID           string
	Identifier       string
	Roles            []string
	TwoFactorEnabled bool
	IssuedAt         time.Time
	ExpiresAt        time.Time
}

// HasRole reports whether r carries any of roles.
func (r *AuthResult) HasRole(roles ...string) bool {
	if r == nil {
		return false
	}
	for _, have := range r.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

// TOTPRequirement selects how the step-up guard treats the second factor.
type TOTPRequirement uint8

const (
	// TOTPNone never asks for a code.
	TOTPNone TOTPRequirement = iota
	// TOTPIfEnrolled asks for a code only when the second factor is active.
	TOTPIfEnrolled
	// TOTPRequired asks for a code and fails with ErrNotEnrolled without one.
	TOTPRequired
)

// StepUpRequirement lists the fresh proofs a sensitive operation needs.
type StepUpRequirement struct {
	Password bool
	TOTP     TOTPRequirement
}

// StepUpProof carries the proofs supplied with a sensitive request.
type StepUpProof struct {
	Password string
	Code     string
}
