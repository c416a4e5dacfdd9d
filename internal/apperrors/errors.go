// Package apperrors holds the errors returned to HTTP clients. Handlers
// return an *AppError; anything else is reported as an internal error
// without its details.
package apperrors

import "net/http"

// AppError is an error with a stable code and a message safe to show to
// clients. Internal is logged, never returned.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Internal }

// Wrap returns a copy of sentinel carrying internal.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage returns a copy of sentinel with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrUnauthorized   = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrUnavailable    = &AppError{Code: "UNAVAILABLE", Message: "Service unavailable", StatusCode: http.StatusServiceUnavailable}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

var (
	ErrInvalidKind  = &AppError{Code: "INVALID_KIND", Message: "kind must be one of ohlc, simple", StatusCode: http.StatusBadRequest}
	ErrInvalidLimit = &AppError{Code: "INVALID_LIMIT", Message: "limit must be a non-negative integer", StatusCode: http.StatusBadRequest}
)
