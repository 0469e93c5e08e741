// Package password hashes and verifies account passwords.
//
// New hashes are argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// [Hasher] also verifies bcrypt hashes ($2a$, $2b$, $2y$) carried over from
// older stores, and reports them through [Hasher.NeedsUpgrade] so the caller
// can rehash after the next successful login.
//
// Password policy (minimum length, reuse) belongs to the engine, not here.
package password
