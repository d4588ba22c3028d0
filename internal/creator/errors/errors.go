package errors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "Validation error"
	ErrorTypeUnauthorized ErrorType = "Unauthorized"
	ErrorTypeRateLimited  ErrorType = "Too Many Requests"
	ErrorTypeUpstream     ErrorType = "Upstream error"
	ErrorTypeInternal     ErrorType = "Internal server error"
)

// Envelope is the uniform error body of every proxy route.
type Envelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type APIError struct {
	Status  int
	Type    ErrorType
	Message string
	err     error
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error { return e.err }

func (e *APIError) Envelope() Envelope {
	return Envelope{Error: string(e.Type), Message: e.Message, Success: false}
}

func Validation(format string, args ...any) *APIError {
	return &APIError{Status: http.StatusBadRequest, Type: ErrorTypeValidation, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) *APIError {
	return &APIError{Status: http.StatusUnauthorized, Type: ErrorTypeUnauthorized, Message: message}
}

func Upstream(message string, cause error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Type: ErrorTypeUpstream, Message: message, err: cause}
}

func Internal(message string, cause error) *APIError {
	return &APIError{Status: http.StatusInternalServerError, Type: ErrorTypeInternal, Message: message, err: cause}
}

var (
	AuthorizationRequired = Unauthorized("Authorization token is required")
	RefreshTokenRequired  = Unauthorized("Refresh token is required")
	RateLimitExceeded     = &APIError{
		Status:  http.StatusTooManyRequests,
		Type:    ErrorTypeRateLimited,
		Message: "Too many attempts. Please try again later.",
	}
	ErrSomethingWentWrong = Internal("Something went wrong! Please try again", nil)
)

// As reports whether err carries an *APIError and returns it.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
