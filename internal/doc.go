// Package internal holds helpers private to skyAuth.
//
//   - audit: security-event sinks and the async dispatcher
//   - flows: deps-struct orchestrators behind each Engine operation
//   - logger: zap construction and context scoping
//   - rate: fixed-window limiters over named policies
//   - stores: the Redis pending-challenge store
//   - config: process configuration for cmd/skyauth
package internal
