package domain

import "errors"

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")

	// ErrAccountNotLinked is returned by authenticated provider operations
	// when the user has never linked an account for the requested provider.
	ErrAccountNotLinked = errors.New("account not linked")

	// ErrDuplicateAccountType is returned when an authorization would swap
	// a provider slot to a different external account than the one it
	// already points to.
	ErrDuplicateAccountType = errors.New("another account of this type is already linked")

	// ErrNoPendingRequest is returned when an OAuth1 verifier callback
	// arrives without a matching authorization request (replay, or a
	// callback for the wrong provider).
	ErrNoPendingRequest = errors.New("no pending authorization request")

	// ErrCannotRemoveLastAccount guards against unlinking the only account
	// the user can still sign in with.
	ErrCannotRemoveLastAccount = errors.New("cannot remove the last linked account")

	// ErrVersionConflict is returned by the store when a concurrent writer
	// updated the user between read and write.
	ErrVersionConflict = errors.New("user was modified concurrently")
)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
