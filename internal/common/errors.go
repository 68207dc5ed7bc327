package common

import "errors"

// Failure classes shared by every layer. Packages wrap them with context so
// the HTTP layer can pick a status with errors.Is.
var (
	ErrUnavailable = errors.New("service unavailable")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrNotFound    = errors.New("not found")
	ErrInvalidArg  = errors.New("invalid argument")
)
