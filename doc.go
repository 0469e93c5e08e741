// Package skyAuth is the authentication and session-security core of the
// SkyAuth airline backend: password login with an optional TOTP second
// factor, backup-code recovery, signed access and refresh tokens, and
// brute-force rate limiting.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// skyAuth is the public surface. It exposes [Engine], [Builder], [Config]
// and the value types the engine consumes and returns. Flow orchestration,
// the pending-challenge store, rate counters and audit dispatch live under
// internal/. The user record is owned by the caller through [UserProvider];
// the engine never caches it.
//
// # What this package must NOT do
//
//   - Expose Redis clients or internal stores in its public API.
//   - Write secrets or full one-time codes to logs or audit events.
//   - Import any sub-package that re-imports skyAuth.
//
// # Concurrency contract
//
// Single-use values are consumed by one conditional write in the store that
// owns them: backup codes through [UserProvider.ConsumeBackupCode], pending
// challenges through a Redis DEL. Second-factor transitions are guarded by
// a version predicate. Rate counters are approximate under races.
package skyAuth
