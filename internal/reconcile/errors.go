package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every client-side precondition failure.
	ErrValidation = errors.New("validation failed")

	// ErrMiningInFlight is returned when StartMining is called while a
	// mining round is already running. No request is made.
	ErrMiningInFlight = errors.New("mining already in flight")
)

// ValidationError reports which input was refused and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
