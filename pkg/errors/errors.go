package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies a failure by how the crawl should react to it.
type ErrorType string

const (
	// ErrorTypeNetwork covers connection, TLS and timeout failures. The page
	// fetch retries these indefinitely.
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeAuthoritative is a definitive answer from the service that
	// retrying cannot change: a non-2xx status or an undecodable body.
	ErrorTypeAuthoritative ErrorType = "authoritative"
	ErrorTypeParsing       ErrorType = "parsing"
	// ErrorTypePersistenceLock means the ledger is held by another process.
	ErrorTypePersistenceLock ErrorType = "persistence_lock"
	ErrorTypePersistence     ErrorType = "persistence"
	ErrorTypeAsset           ErrorType = "asset"
	ErrorTypeSchemaMismatch  ErrorType = "schema_mismatch"
	ErrorTypeUnknown         ErrorType = "unknown"
)

// Error carries a type, a message, an optional HTTP status code and the
// underlying cause.
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
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error of the given type.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap returns an Error of the given type around err.
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// TypeOf reports the type of the first *Error in err's chain, or
// ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err's chain contains an *Error of type t.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}

// IsTransient reports whether err is a network-level failure worth retrying.
func IsTransient(err error) bool {
	return IsType(err, ErrorTypeNetwork)
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeAsset:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable
// asset download failure.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0, 408, 429:
		return true
	case 401, 403, 404, 410:
		return false
	default:
		return statusCode >= 500
	}
}
