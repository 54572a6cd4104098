package repo

import "errors"

var (
	// ErrNotFound is returned when no user matches a lookup or update.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateKey is returned by Create when the email is already taken.
	ErrDuplicateKey = errors.New("duplicate key")
)
