package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a write that disagrees with already-accepted state.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument is a generic sentinel for invalid input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnderflow marks a ledger debit exceeding the available balance.
	ErrUnderflow = errors.New("insufficient balance")
	// ErrForbidden marks access to a resource the caller does not own.
	ErrForbidden = errors.New("forbidden")
)
