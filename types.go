package skyAuth

import (
	"github.com/MrEthical07/skyAuth/internal/audit"
	"github.com/MrEthical07/skyAuth/internal/flows"
)

// AccountStatus is the lifecycle state of a user account.
type AccountStatus = flows.AccountStatus

const (
	AccountActive   = flows.AccountActive
	AccountInactive = flows.AccountInactive
	AccountLocked   = flows.AccountLocked
)

// ParseAccountStatus maps "active", "inactive" and "locked".
func ParseAccountStatus(raw string) (AccountStatus, bool) {
	return flows.ParseAccountStatus(raw)
}

// SecondFactorState is the derived enrollment state of [SecondFactor].
type SecondFactorState = flows.SecondFactorState

const (
	SecondFactorNotEnrolled       = flows.SecondFactorNotEnrolled
	SecondFactorPendingActivation = flows.SecondFactorPendingActivation
	SecondFactorActive            = flows.SecondFactorActive
	SecondFactorDisabled          = flows.SecondFactorDisabled
)

// BackupCode is one stored recovery code digest.
type BackupCode = flows.BackupCode

// SecondFactor is the second-factor sub-structure of a user record.
type SecondFactor = flows.SecondFactor

// UserRecord is the security-relevant subset of a user account.
type UserRecord = flows.User

// UserProvider is the credential store accessor the engine depends on.
// Implementations return ErrUserNotFound for unknown users and must make
// ConditionalUpdateSecondFactor and ConsumeBackupCode single atomic writes.
type UserProvider = flows.UserStore

type (
	PublicUser            = flows.PublicUser
	TokenPair             = flows.TokenPair
	LoginRequest          = flows.LoginRequest
	LoginResult           = flows.LoginResult
	TwoFactorLoginRequest = flows.TwoFactorLoginRequest
	TwoFactorLoginResult  = flows.TwoFactorLoginResult
	TwoFactorSetup        = flows.TwoFactorSetup
	TwoFactorStatus       = flows.TwoFactorStatus
	AuthResult            = flows.AuthResult
)

// TOTPRequirement selects how the step-up guard treats the second factor.
type TOTPRequirement = flows.TOTPRequirement

const (
	TOTPNone       = flows.TOTPNone
	TOTPIfEnrolled = flows.TOTPIfEnrolled
	TOTPRequired   = flows.TOTPRequired
)

type (
	StepUpRequirement = flows.StepUpRequirement
	StepUpProof       = flows.StepUpProof
)

// AuditEvent is a structured security event emitted through [AuditSink].
type AuditEvent = audit.Event

// AuditSink is the security-event port. Implementations must be safe for concurrent use.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZapSink        = audit.ZapSink
	MultiSink      = audit.MultiSink
)

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewZapSink returns a sink that logs failures at warn level and successes at info level.
var NewZapSink = audit.NewZapSink

// NewJSONWriterSink returns a sink writing JSON lines to w.
var NewJSONWriterSink = audit.NewJSONWriterSink
