// Package errs defines coded errors shared by the acceptance harness and the
// reference todo application.
package errs

import (
	"errors"
	"net/http"
)

// Code is an error code.
type Code string

// Harness failure taxonomy.
const (
	Launch          Code = "launch"
	ElementNotFound Code = "element_not_found"
	Timeout         Code = "timeout"
	Assertion       Code = "assertion"
)

// Reference application codes.
const (
	InvalidArgument    Code = "invalid_argument"
	NotFound           Code = "not_found"
	FailedPrecondition Code = "failed_precondition"
	PermissionDenied   Code = "permission_denied"
	Unauthenticated    Code = "unauthenticated"
	TooManyRequests    Code = "too_many_requests"
	Internal           Code = "internal"
)

// Category groups codes by what a failure says about the run.
type Category string

const (
	// CategoryInfrastructure covers environment and timing failures (launch, timeout).
	CategoryInfrastructure Category = "infrastructure"
	// CategoryLocator covers markup drift: an element the harness relies on is gone.
	CategoryLocator Category = "locator"
	// CategoryRegression covers outcome mismatches in the application under test.
	CategoryRegression Category = "regression"
	// CategoryInternal covers everything else.
	CategoryInternal Category = "internal"
)

// Error is a coded error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a coded error with message.
func New(code Code, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a coded error with message and cause.
func Wrap(code Code, message string, cause error) error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// CodeOf returns the outermost error code, defaulting to internal.
func CodeOf(err error) Code {
	if err == nil {
		return Internal
	}
	var coded *Error
	if errors.As(err, &coded) {
		if coded.Code == "" {
			return Internal
		}
		return coded.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// MessageOf returns a user-facing error message.
// Untyped errors become "internal error" so storage details never reach a page.
func MessageOf(err error) string {
	if err == nil {
		return string(Internal)
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return "internal error"
}

// CategoryOf classifies an error for failure reports.
func CategoryOf(err error) Category {
	switch CodeOf(err) {
	case Launch, Timeout:
		return CategoryInfrastructure
	case ElementNotFound:
		return CategoryLocator
	case Assertion:
		return CategoryRegression
	default:
		return CategoryInternal
	}
}

// HTTPStatus maps error code to HTTP status.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidArgument:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition:
		return http.StatusConflict
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
