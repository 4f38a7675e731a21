// Package apperr defines the application error taxonomy. Every AppError
// carries a short message that is safe to show to a user; the wrapped
// internal error is only ever logged.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
)

// Type classifies an error for logging and transport mapping
type Type string

const (
	TypeValidation Type = "validation"
	TypeNotFound   Type = "not_found"
	TypeDatabase   Type = "database"
	TypeExternal   Type = "external_api"
	TypeConfig     Type = "config"
	TypeInfeasible Type = "infeasible"
	TypeInternal   Type = "internal"
)

// AppError is an application error with a user-facing message
type AppError struct {
	Type     Type
	Code     string
	Message  string
	Field    string
	Internal error
	Source   string
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is matches another AppError by type and code
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return false
}

// LogFields returns structured logging fields
func (e *AppError) LogFields() []any {
	fields := []any{
		"error_type", e.Type,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}
	if e.Field != "" {
		fields = append(fields, "field", e.Field)
	}
	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}
	return fields
}

// HTTPStatus maps the error type to a response status
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeInfeasible:
		return http.StatusUnprocessableEntity
	case TypeExternal:
		return http.StatusBadGateway
	case TypeConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func caller() string {
	_, file, line, _ := runtime.Caller(2)
	return fmt.Sprintf("%s:%d", file, line)
}

// New creates an AppError
func New(t Type, code, message string) *AppError {
	return &AppError{Type: t, Code: code, Message: message, Source: caller()}
}

// Wrap wraps err into an AppError
func Wrap(err error, t Type, code, message string) *AppError {
	return &AppError{Type: t, Code: code, Message: message, Internal: err, Source: caller()}
}

// Validation reports a rejected input field
func Validation(field, message string) *AppError {
	return &AppError{Type: TypeValidation, Code: "VALIDATION", Field: field, Message: message, Source: caller()}
}

// NotFound reports a missing record
func NotFound(what string) *AppError {
	return &AppError{Type: TypeNotFound, Code: "NOT_FOUND", Message: what + " not found", Source: caller()}
}

// Database wraps a storage failure
func Database(err error, message string) *AppError {
	return &AppError{Type: TypeDatabase, Code: "DB_ERROR", Message: message, Internal: err, Source: caller()}
}

// External wraps an upstream service failure
func External(err error, service string) *AppError {
	return &AppError{Type: TypeExternal, Code: "EXTERNAL_API", Message: service + " is unavailable, please try again", Internal: err, Source: caller()}
}

// Config wraps a configuration problem such as missing credentials
func Config(err error, message string) *AppError {
	return &AppError{Type: TypeConfig, Code: "CONFIG", Message: message, Internal: err, Source: caller()}
}

// Internal wraps an unexpected failure
func Internal(err error) *AppError {
	return &AppError{Type: TypeInternal, Code: "INTERNAL", Message: "something went wrong", Internal: err, Source: caller()}
}

// As extracts an AppError from err, wrapping unknown errors as internal
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{Type: TypeInternal, Code: "INTERNAL", Message: "something went wrong", Internal: err}
}

// IsType reports whether err is an AppError of type t
func IsType(err error, t Type) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

// Log writes err at a level matching its type
func Log(ctx context.Context, logger *slog.Logger, err error) {
	if err == nil {
		return
	}
	appErr := As(err)
	switch appErr.Type {
	case TypeValidation, TypeNotFound, TypeInfeasible:
		logger.WarnContext(ctx, "request rejected", appErr.LogFields()...)
	default:
		logger.ErrorContext(ctx, "request failed", appErr.LogFields()...)
	}
}
