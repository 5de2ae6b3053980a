package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage is returned when the order store cannot be reached or fails.
	RedisErrorMessage = "order store unavailable"
	// RedisNotFoundMessage is returned when a stored order does not exist or has expired.
	RedisNotFoundMessage = "stored order not found"
	// RedisTimeoutMessage is returned when an order store call runs out of time.
	RedisTimeoutMessage = "order store timed out"
	// InvalidRequestMessage describes malformed client input.
	InvalidRequestMessage = "invalid request data"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// NotFound builds a 404 AppError for the named resource.
func NotFound(resource, id string) *AppError {
	return New(fmt.Errorf("%s %q not found", resource, id), http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// BadRequest builds a 400 AppError carrying a client-safe reason.
func BadRequest(reason string) *AppError {
	return New(errors.New(reason), http.StatusBadRequest, InvalidRequestMessage)
}

// StatusOf returns the HTTP status attached to err, or 500 for plain errors.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the safe message attached to err, or the system fallback.
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return SystemErrorMessage
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return false
}
