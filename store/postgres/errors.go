package postgres

import "errors"

var (
	ErrEmptyIdentifier     = errors.New("identifier must not be empty")
	ErrDuplicateIdentifier = errors.New("identifier or user id already exists")
)
