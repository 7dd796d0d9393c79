// Package errors provides standardized domain errors with codes for PathWatch.
//
// Usage:
//
//	// In constructors - return typed errors
//	if workers < 1 {
//	    return nil, errors.InvalidConfiguration("callback concurrency must be at least 1")
//	}
//
//	// At call sites - check with errors.Is
//	if errors.Is(err, errors.ErrInvalidConfiguration) {
//	    log.Fatal("bad config", "error", err)
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the service.
const (
	CodeInvalidConfiguration Code = "INVALID_CONFIGURATION"
	CodeCallbackFailure      Code = "CALLBACK_FAILURE"
	CodeNotFound             Code = "NOT_FOUND"
	CodeValidation           Code = "VALIDATION"
	CodeInternal             Code = "INTERNAL"
)

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a new error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		cause:   e.cause,
	}
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		cause:   err,
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrInvalidConfiguration = &Error{Code: CodeInvalidConfiguration, Message: "invalid configuration"}
	ErrCallbackFailure      = &Error{Code: CodeCallbackFailure, Message: "callback failure"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
	ErrValidation           = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal             = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// InvalidConfiguration creates an invalid configuration error.
func InvalidConfiguration(msg string) *Error {
	return &Error{Code: CodeInvalidConfiguration, Message: msg}
}

// InvalidConfigurationf creates an invalid configuration error with formatted message.
func InvalidConfigurationf(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidConfiguration, Message: fmt.Sprintf(format, args...)}
}

// CallbackFailure creates a callback failure error.
func CallbackFailure(msg string) *Error {
	return &Error{Code: CodeCallbackFailure, Message: msg}
}

// CallbackFailuref creates a callback failure error with formatted message.
func CallbackFailuref(format string, args ...any) *Error {
	return &Error{Code: CodeCallbackFailure, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with an internal error code and message.
func Wrap(err error, msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg, cause: err}
}
