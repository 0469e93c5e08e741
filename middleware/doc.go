// Package middleware is the request gate in front of skyAuth handlers.
//
// [Gate] composes, in order: body limit and client context, the general
// rate limit, the CSRF double-submit check, bearer authentication, an
// optional step-up, and role authorization. Each stage is also exported on
// its own. A rejected request never reaches the wrapped handler.
//
// Rejections go to an [ErrorWriter] so rendering stays with the HTTP layer.
// This package translates HTTP into Engine calls; it never parses tokens
// or touches Redis itself.
package middleware
