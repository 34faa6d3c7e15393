package models

import "errors"

// Error taxonomy for the rate card engine. Handlers map these onto HTTP
// status codes; services wrap them with fmt.Errorf("%w: ...") for detail.
var (
	// ErrValidation rejects malformed input before any persistence
	ErrValidation = errors.New("validation failed")

	// ErrNotFound signals an unknown id or that no rate card item resolves
	ErrNotFound = errors.New("not found")

	// ErrConflict signals an optimistic-concurrency mismatch; the caller
	// must re-fetch and retry
	ErrConflict = errors.New("conflict")

	// ErrInvalidTransition signals an attempt to move a transaction along
	// an illegal status transition
	ErrInvalidTransition = errors.New("invalid status transition")
)
