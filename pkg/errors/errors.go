// Package errors defines the AppError carried from services to the HTTP envelope.
// Every AppError wraps one of the sentinels below, so callers branch with Is.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("resource conflict")
	ErrInternal     = errors.New("internal server error")
	ErrValidation   = errors.New("validation error")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// AppError is an error with a client-facing message and HTTP status
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
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

// WithDetails attaches per-field details and returns e
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

type kind struct {
	sentinel error
	code     string
	status   int
}

var (
	kindNotFound     = kind{ErrNotFound, "NOT_FOUND", http.StatusNotFound}
	kindUnauthorized = kind{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized}
	kindBadRequest   = kind{ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest}
	kindConflict     = kind{ErrConflict, "CONFLICT", http.StatusConflict}
	kindInternal     = kind{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError}
	kindValidation   = kind{ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest}
	kindTokenExpired = kind{ErrTokenExpired, "TOKEN_EXPIRED", http.StatusUnauthorized}
	kindTokenInvalid = kind{ErrTokenInvalid, "TOKEN_INVALID", http.StatusUnauthorized}
)

func (k kind) new(message string) *AppError {
	return &AppError{Err: k.sentinel, Code: k.code, Message: message, StatusCode: k.status}
}

// NotFound reports "<resource> not found"
func NotFound(resource string) *AppError {
	return kindNotFound.new(resource + " not found")
}

func NotFoundWithMessage(message string) *AppError { return kindNotFound.new(message) }
func Unauthorized(message string) *AppError { return kindUnauthorized.new(message) }
func BadRequest(message string) *AppError { return kindBadRequest.new(message) }
func Conflict(message string) *AppError { return kindConflict.new(message) }
func Internal(message string) *AppError { return kindInternal.new(message) }

// InternalWrap keeps err for logs. Only message reaches the response body.
func InternalWrap(err error, message string) *AppError {
	e := kindInternal.new(message)
	e.Err = fmt.Errorf("%w: %v", ErrInternal, err)
	return e
}

// Validation reports field problems under the generic "validation failed" message
func Validation(details map[string]string) *AppError {
	return ValidationMessage("validation failed", details)
}

// ValidationMessage is Validation with a specific message, used when one field is at fault
func ValidationMessage(message string, details map[string]string) *AppError {
	return kindValidation.new(message).WithDetails(details)
}

func TokenExpired() *AppError { return kindTokenExpired.new("token has expired") }
func TokenInvalid() *AppError { return kindTokenInvalid.new("invalid token") }

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}
