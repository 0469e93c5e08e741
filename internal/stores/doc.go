// Package stores provides the Redis-backed pending second-factor challenge
// store.
//
// Records are versioned binary blobs with a TTL. Consumption is a single
// DEL whose reply decides the winner; failure counting uses WATCH/MULTI with
// retry on contention. Secret digests are compared in constant time, and
// plaintext tokens never reach Redis.
//
// The package makes no authentication decisions and must not import skyAuth.
package stores
