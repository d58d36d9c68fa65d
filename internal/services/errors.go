package services

import "errors"

// Closed set of business error kinds. Handlers switch on these with
// errors.Is; anything else is an infrastructure failure. NotFound also covers
// "exists but the caller may not see it", so existence never leaks.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
)
