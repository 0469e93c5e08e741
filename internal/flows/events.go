package flows

// Audit event kinds.
const (
	EventLoginSuccess           = "login_success"
	EventLoginFailure           = "login_failure"
	EventAdminLoginSuccess      = "admin_login_success"
	EventAdminLoginFailure      = "admin_login_failure"
	EventTwoFactorRequired      = "two_factor_required"
	EventTwoFactorLoginSuccess  = "two_factor_login_success"
	EventTwoFactorLoginFailure  = "two_factor_login_failure"
	EventTwoFactorExhausted     = "two_factor_attempts_exceeded"
	EventTwoFactorSetupStarted  = "two_factor_setup_started"
	EventTwoFactorEnabled       = "two_factor_enabled"
	EventTwoFactorConfirmFailed = "two_factor_confirm_failure"
	EventTwoFactorDisabled      = "two_factor_disabled"
	EventBackupCodesGenerated   = "backup_codes_generated"
	EventBackupCodeUsed         = "backup_code_used"
	EventBackupCodeFailed       = "backup_code_failed"
	EventStepUpFailure          = "step_up_failure"
	EventRefreshSuccess         = "refresh_success"
	EventRefreshFailure         = "refresh_failure"
	EventPasswordChanged        = "password_changed"
	EventPasswordChangeFailure  = "password_change_failure"
	EventPasswordRehash         = "password_rehash"
	EventAccountStatusChange    = "account_status_change"
	EventAccountAutoLocked      = "account_auto_locked"
	EventTokensRevoked          = "tokens_revoked"
)
