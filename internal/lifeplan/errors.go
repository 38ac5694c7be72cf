package lifeplan

import (
	"github.com/myrjola/lifeplan/internal/errors"
)

var (
	// ErrValidation is returned for missing or malformed input. Nothing has been persisted when it is returned.
	ErrValidation = errors.NewSentinel("invalid input")
	// ErrStorage is returned when the state could not be loaded or saved.
	ErrStorage = errors.NewSentinel("state storage failed")
)

// ValidationError describes the offending input field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Problem string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Problem
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation //nolint:errorlint // sentinel comparison
}

// storageError marks err as ErrStorage while keeping the cause reachable with errors.Is and errors.As.
type storageError struct {
	err error
}

func (e storageError) Error() string {
	return e.err.Error()
}

func (e storageError) Unwrap() []error {
	return []error{ErrStorage, e.err}
}
