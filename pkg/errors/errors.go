package errors

import (
	"errors"
	"fmt"
)

// Error represents a typed domain error.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrStore               = New("STORE_ERROR", "record store failure")
	ErrNotFound            = New("NOT_FOUND", "record not found")
	ErrValidation          = New("VALIDATION_ERROR", "validation failed")
	ErrProviderUnavailable = New("PROVIDER_UNAVAILABLE", "roster provider cannot be instantiated")
	ErrNoLookupCapability  = New("NO_LOOKUP_CAPABILITY", "provider supports neither section nor department lookups")
	ErrRunInProgress       = New("RUN_IN_PROGRESS", "a reconciliation run is already in progress")
	ErrRunDisabled         = New("RUN_DISABLED", "reconciliation is disabled by configuration")
	ErrRunTooSoon          = New("RUN_TOO_SOON", "previous run finished within the grace period")
	ErrManifest            = New("MANIFEST_ERROR", "target manifestation failure")
	ErrInternal            = New("INTERNAL_ERROR", "internal error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the given code.
func Is(err error, target *Error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return target != nil && e.Code == target.Code
}
