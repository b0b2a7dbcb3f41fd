package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so callers can test
// against the sentinels below with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrOutOfRange:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrInvalidState, ErrUnavailable, ErrCapacityExceeded, ErrSkillMismatch, ErrConflict:
		return http.StatusConflict
	case ErrUnavailableService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrOutOfRange
	ErrInvalidState
	ErrUnavailable
	ErrCapacityExceeded
	ErrSkillMismatch
	ErrConflict
	ErrUnavailableService
)

// Sentinels for errors.Is comparisons.
var (
	NotFoundError         = &AppError{Code: ErrNotFound}
	ValidationError       = &AppError{Code: ErrBadRequest}
	OutOfRangeError       = &AppError{Code: ErrOutOfRange}
	ForbiddenError        = &AppError{Code: ErrForbidden}
	InvalidStateError     = &AppError{Code: ErrInvalidState}
	UnavailableError      = &AppError{Code: ErrUnavailable}
	CapacityExceededError = &AppError{Code: ErrCapacityExceeded}
	SkillMismatchError    = &AppError{Code: ErrSkillMismatch}
	ConflictError         = &AppError{Code: ErrConflict}
	UnauthorizedError     = &AppError{Code: ErrUnauthorized}
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: ErrForbidden, Message: message}
}

func OutOfRange(message string) *AppError {
	return &AppError{Code: ErrOutOfRange, Message: message}
}

func InvalidState(message string) *AppError {
	return &AppError{Code: ErrInvalidState, Message: message}
}

func Unavailable(message string) *AppError {
	return &AppError{Code: ErrUnavailable, Message: message}
}

func CapacityExceeded(message string) *AppError {
	return &AppError{Code: ErrCapacityExceeded, Message: message}
}

func SkillMismatch(message string) *AppError {
	return &AppError{Code: ErrSkillMismatch, Message: message}
}

func Conflict(message string, err error) *AppError {
	return &AppError{Code: ErrConflict, Message: message, Err: err}
}

func ServiceUnavailable(message string, err error) *AppError {
	return &AppError{Code: ErrUnavailableService, Message: message, Err: err}
}

// HasCode reports whether err is, or wraps, an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
