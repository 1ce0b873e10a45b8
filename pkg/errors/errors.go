package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType represents different types of errors that can occur
type ErrorType string

const (
	ErrorTypeExtraction      ErrorType = "extraction"
	ErrorTypeAdvanceStall    ErrorType = "advance_stall"
	ErrorTypeSubjectNotFound ErrorType = "subject_not_found"
	ErrorTypePersistence     ErrorType = "persistence"
	ErrorTypeAuth            ErrorType = "auth"
	ErrorTypeNetwork         ErrorType = "network"
	ErrorTypeRateLimit       ErrorType = "rate_limit"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// Error carries a type alongside the message so callers can decide how to react
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.Code != 0 {
		msg = fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(errorType ErrorType, message string, err error) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// SubjectNotFound reports a profile, thread or tag that does not exist or is not visible
func SubjectNotFound(subject string) *Error {
	return &Error{Type: ErrorTypeSubjectNotFound, Message: fmt.Sprintf("subject %q does not exist or is not accessible", subject)}
}

// Persistence wraps a snapshot store failure
func Persistence(message string, err error) *Error {
	return Wrap(ErrorTypePersistence, message, err)
}

// TypeOf returns the type of the first *Error in the chain, or ErrorTypeUnknown
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err carries the given type
func IsType(err error, errorType ErrorType) bool {
	if err == nil {
		return false
	}
	return TypeOf(err) == errorType
}

// IsTerminal reports whether no partial result is meaningful after err
func IsTerminal(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeSubjectNotFound, ErrorTypeAuth:
		return true
	default:
		return false
	}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypePersistence:
		return true
	case ErrorTypeAuth, ErrorTypeSubjectNotFound, ErrorTypeExtraction, ErrorTypeAdvanceStall:
		return false
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429: // Too Many Requests
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
