package utils

import (
	"errors"
	"fmt"
)

// ErrorKind names the rule category a failure belongs to
type ErrorKind string

const (
	KindValidation ErrorKind = "validation error"
	KindPolicy     ErrorKind = "policy error"
	KindRateLimit  ErrorKind = "rate limit error"
	KindProtocol   ErrorKind = "protocol error"
	KindNotFound   ErrorKind = "not found"
	KindBadRequest ErrorKind = "bad request"
	KindAuth       ErrorKind = "unauthorized"
	KindInternal   ErrorKind = "internal error"
)

// AppError is a failure with its HTTP status and rule kind
type AppError struct {
	Code    int       // HTTP status code
	Kind    ErrorKind // Rule category
	Message string    // User-friendly message
	Err     error     // Underlying error
}

// NewAppError creates a new AppError
func NewAppError(code int, kind ErrorKind, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return e.Public()
}

// Public is the message shown to the caller. It never includes the
// underlying error, which may carry server responses.
func (e *AppError) Public() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying error to errors.Is / errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err (or any error in its chain) is an AppError of kind.
func IsKind(err error, kind ErrorKind) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Kind == kind
}

// Trust-boundary errors

func ValidationError(message string) *AppError {
	return NewAppError(400, KindValidation, message, nil)
}

func PolicyError(message string) *AppError {
	return NewAppError(403, KindPolicy, message, nil)
}

func RateLimitError(message string) *AppError {
	return NewAppError(429, KindRateLimit, message, nil)
}

func ProtocolError(message string, err error) *AppError {
	return NewAppError(502, KindProtocol, message, err)
}

// Common error constructors
func BadRequestError(message string, err error) *AppError {
	return NewAppError(400, KindBadRequest, message, err)
}

func UnauthorizedError(message string, err error) *AppError {
	return NewAppError(401, KindAuth, message, err)
}

func NotFoundError(message string, err error) *AppError {
	return NewAppError(404, KindNotFound, message, err)
}

func InternalServerError(message string, err error) *AppError {
	return NewAppError(500, KindInternal, message, err)
}
