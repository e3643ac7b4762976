package apperrors

import "errors"

var (
	// ErrNotFound indicates an unknown prompt or version.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates bad input (empty content, empty or oversized message).
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates an append whose outcome is ambiguous. It must never
	// be retried automatically; the caller should check the version history
	// before retrying.
	ErrConflict = errors.New("conflict")
)
