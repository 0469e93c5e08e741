package internaldefs

import (
	"github.com/MrEthical07/skyAuth"
)

type CounterDef struct {
	ID   skyAuth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   skyAuth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: skyAuth.MetricLoginSuccess, Name: "skyauth_login_success_total", Help: "Logins that issued a session pair."},
	{ID: skyAuth.MetricLoginFailure, Name: "skyauth_login_failure_total", Help: "Failed login attempts."},
	{ID: skyAuth.MetricLoginRateLimited, Name: "skyauth_login_rate_limited_total", Help: "Login attempts rejected by rate limiting."},
	{ID: skyAuth.MetricTwoFactorChallengeIssued, Name: "skyauth_two_factor_challenge_issued_total", Help: "Logins that stopped at the second factor."},
	{ID: skyAuth.MetricTwoFactorLoginSuccess, Name: "skyauth_two_factor_login_success_total", Help: "Second-factor login completions."},
	{ID: skyAuth.MetricTwoFactorLoginFailure, Name: "skyauth_two_factor_login_failure_total", Help: "Failed second-factor login attempts."},
	{ID: skyAuth.MetricTwoFactorChallengeExhausted, Name: "skyauth_two_factor_challenge_exhausted_total", Help: "Pending challenges invalidated by the attempt cap."},
	{ID: skyAuth.MetricTwoFactorEnabled, Name: "skyauth_two_factor_enabled_total", Help: "Second-factor activations."},
	{ID: skyAuth.MetricTwoFactorDisabled, Name: "skyauth_two_factor_disabled_total", Help: "Second-factor deactivations."},
	{ID: skyAuth.MetricTOTPFailure, Name: "skyauth_totp_failure_total", Help: "TOTP codes that did not verify."},
	{ID: skyAuth.MetricBackupCodeUsed, Name: "skyauth_backup_code_used_total", Help: "Backup codes consumed."},
	{ID: skyAuth.MetricBackupCodeFailed, Name: "skyauth_backup_code_failed_total", Help: "Unknown or reused backup codes."},
	{ID: skyAuth.MetricBackupCodesRegenerated, Name: "skyauth_backup_codes_regenerated_total", Help: "Backup code set regenerations."},
	{ID: skyAuth.MetricStepUpFailure, Name: "skyauth_step_up_failure_total", Help: "Failed step-up verifications."},
	{ID: skyAuth.MetricRefreshSuccess, Name: "skyauth_refresh_success_total", Help: "Successful refresh operations."},
	{ID: skyAuth.MetricRefreshFailure, Name: "skyauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: skyAuth.MetricTokenVersionMismatch, Name: "skyauth_token_version_mismatch_total", Help: "Tokens rejected after revocation."},
	{ID: skyAuth.MetricPasswordChanged, Name: "skyauth_password_changed_total", Help: "Password changes."},
	{ID: skyAuth.MetricAccountStatusChanged, Name: "skyauth_account_status_changed_total", Help: "Administrative account status changes."},
	{ID: skyAuth.MetricTokensRevoked, Name: "skyauth_tokens_revoked_total", Help: "Explicit token revocations."},
	{ID: skyAuth.MetricRateLimitHit, Name: "skyauth_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: skyAuth.MetricAccountAutoLocked, Name: "skyauth_account_auto_locked_total", Help: "Accounts locked after repeated wrong passwords."},
	{ID: skyAuth.MetricRateLimitBackendError, Name: "skyauth_rate_limit_backend_error_total", Help: "Rate-limit checks that could not reach the counter store."},
}

var HistogramDefs = []HistogramDef{
	{ID: skyAuth.MetricValidateLatency, Name: "skyauth_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, matching the
// millisecond buckets kept by skyAuth.Metrics. The last bucket is +Inf and is
// not listed.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

const AuditDroppedName = "skyauth_audit_dropped_total"

const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
