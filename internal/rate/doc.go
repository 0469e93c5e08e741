// Package rate implements fixed-window rate limiting over named policies.
//
// Keys have the form <prefix>:<policy>:<caller key>:<window start unix>. The
// Redis backend is shared across processes; the memory backend (go-cache)
// is per process. Neither knows which accounts exist.
package rate
