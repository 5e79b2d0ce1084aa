// Package errors defines the sentinel errors shared across the service and
// the AppError wrapper that carries an HTTP status code to the API layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrIndexUnavailable means no index snapshot has been built or loaded
	// yet. Callers must treat it as fatal until a build completes.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrInvalidQuery marks queries that are empty or unprocessable before
	// tokenization even runs (for example a missing request field).
	ErrInvalidQuery     = errors.New("invalid query")
	ErrDocumentNotFound = errors.New("document not found")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrLiveUnavailable  = errors.New("live search unavailable")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

// AppError wraps a sentinel with a human-readable message and the HTTP
// status code the API layer should answer with.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError from a sentinel.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Newf is New with fmt.Sprintf semantics for the message.
func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps an error to the status code the API should return.
// Zero matches and below-threshold results are not errors and never reach
// this function; they are distinct outcome kinds on the result itself.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrIndexUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
