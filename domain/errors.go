package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConflict matches every ConflictError.
	ErrConflict = errors.New("conflict")
	// ErrTransient matches every TransientNetworkError.
	ErrTransient = errors.New("transient network failure")
	// ErrQuotaExceeded is wrapped by validation errors raised by role limits.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// ValidationError reports a request that references state which does not exist
// or breaks a precondition. Nothing is written when it is returned.
type ValidationError struct {
	Op     string
	Reason string
	Err    error
}

// Validationf builds a ValidationError with a formatted reason.
func Validationf(op, format string, args ...any) *ValidationError {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	msg := e.Op + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

// TransientNetworkError reports a gateway call that failed because the
// backend could not be reached or answered with a server-side failure.
type TransientNetworkError struct {
	Op  string
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientNetworkError) Is(target error) bool { return target == ErrTransient }

func (e *TransientNetworkError) Unwrap() error { return e.Err }

// ConflictError reports a mutation rejected because server state diverged
// from the state the client assumed.
type ConflictError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	msg := e.Op + ": conflict"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }
