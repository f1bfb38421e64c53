// Package errors provides error codes and the tagged error type used
// across brewsync. Request failures carry the originating HTTP status so
// callers can branch on it without string matching.
package errors

import "fmt"

// ErrorCode tags an AppError with a stable, comparable cause.
type ErrorCode string

const (
	// Connectivity
	ErrNetworkUnreachable ErrorCode = "NETWORK_UNREACHABLE"
	ErrServerUnreachable  ErrorCode = "SERVER_UNREACHABLE"

	// Authentication
	ErrUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrAuthFailed      ErrorCode = "AUTH_FAILED"
	ErrTwoFactorNeeded ErrorCode = "TWO_FACTOR_REQUIRED"

	// Requests
	ErrRequestFailed ErrorCode = "REQUEST_FAILED"
	ErrNotFound      ErrorCode = "NOT_FOUND"

	// Sync
	ErrOperationDropped ErrorCode = "OPERATION_DROPPED"
	ErrSyncInProgress   ErrorCode = "SYNC_IN_PROGRESS"

	// Local plumbing
	ErrStore    ErrorCode = "STORE_ERROR"
	ErrConfig   ErrorCode = "CONFIG_ERROR"
	ErrInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with a code, an optional HTTP
// status, and a human-readable message.
type AppError struct {
	Code    ErrorCode
	Status  int // 0 when the error did not originate from an HTTP response
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("[%s] %d %s: %v", e.Code, e.Status, e.Message, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("[%s] %d %s", e.Code, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// Request creates an AppError for a non-2xx HTTP response. A 404 is tagged
// NOT_FOUND so replay logic can recognize "target no longer exists".
func Request(status int, message string) *AppError {
	code := ErrRequestFailed
	if status == 404 {
		code = ErrNotFound
	}
	return &AppError{Code: code, Status: status, Message: message}
}

// Is checks whether err carries the given code, unwrapping as needed.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			if appErr.Code == code {
				return true
			}
			err = appErr.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			if appErr.Status != 0 {
				return appErr.Status
			}
			err = appErr.Err
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}
