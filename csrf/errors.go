package csrf

import "errors"

var (
	ErrMissingCookie = errors.New("csrf cookie missing")
	ErrMissingToken  = errors.New("csrf token missing")
	ErrTokenMismatch = errors.New("csrf token mismatch")
)
