package rate

import "errors"

var (
	// ErrBackendUnavailable wraps counter store failures.
	ErrBackendUnavailable = errors.New("rate limit backend unavailable")
	// ErrInvalidPolicy is returned for a policy without a positive limit and window.
	ErrInvalidPolicy = errors.New("invalid rate limit policy")
)
