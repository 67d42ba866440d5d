package core

import "errors"

// Sentinel errors callers can test with errors.Is. Every returned error wraps
// one of these with context describing what was being looked up or changed.
var (
	// ErrNotFound is returned when a spec, task id or approval does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned when a required parameter is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when an approval cannot move to the
	// requested status from its current one.
	ErrInvalidTransition = errors.New("invalid status transition")
)
