// Package errors defines the sentinel errors shared by the evaluation engine
// and an AppError wrapper that carries an HTTP status for the search service.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnsupportedCombination is returned when a scoring operator is asked
	// to score under a retrieval model it does not implement.
	ErrUnsupportedCombination = errors.New("unsupported operator for retrieval model")
	// ErrInvalidIteratorState is returned when a match, position or score is
	// read from a node that is not positioned on a match.
	ErrInvalidIteratorState = errors.New("invalid iterator state")
	// ErrMalformedInput covers bad operator arguments: non-positive
	// distances, unusable weights, mixed fields, shared children.
	ErrMalformedInput = errors.New("malformed input")
	// ErrConfiguration covers invalid retrieval-model or diversification
	// settings.
	ErrConfiguration = errors.New("configuration error")

	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
)

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

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Malformed wraps ErrMalformedInput with a formatted description.
func Malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

// Configuration wraps ErrConfiguration with a formatted description.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedInput), errors.Is(err, ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnsupportedCombination):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
