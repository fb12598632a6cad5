// Package apperror classifies failures into the kinds callers act on:
// fix the input, get permission, look elsewhere, stop trusting the data,
// retry later, or report a defect.
package apperror

import (
	"errors"

	"github.com/cmlabs-hris/attendance-ledger/internal/pkg/validator"
)

type Kind string

const (
	KindUnknown       Kind = "UNKNOWN"
	KindValidation    Kind = "VALIDATION"
	KindAuthorization Kind = "AUTHORIZATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindIntegrity     Kind = "INTEGRITY"
	KindTransient     Kind = "TRANSIENT"
	KindConflict      Kind = "CONFLICT"
)

// Sentinels to wrap with fmt.Errorf("...: %w", apperror.ErrNotFound) or New.
var (
	ErrAuthorization = errors.New("not authorized")
	ErrNotFound      = errors.New("not found")
	ErrIntegrity     = errors.New("integrity failure")
	ErrTransient     = errors.New("transient infrastructure failure")
	ErrConflict      = errors.New("concurrent modification")
)

// Error is a message tagged with one of the sentinels above.
type Error struct {
	msg  string
	kind error
}

// New returns an error with msg that matches kind under errors.Is.
func New(kind error, msg string) *Error {
	return &Error{msg: msg, kind: kind}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Unwrap() error { return e.kind }

// Transient marks err as retryable infrastructure failure, keeping the cause.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{cause: err}
}

type transientError struct {
	cause error
}

func (e *transientError) Error() string { return e.cause.Error() }

func (e *transientError) Unwrap() []error { return []error{ErrTransient, e.cause} }

// KindOf returns the classification of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		return KindValidation
	case errors.Is(err, ErrIntegrity):
		return KindIntegrity
	case errors.Is(err, ErrAuthorization):
		return KindAuthorization
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether retrying the same operation may succeed.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
