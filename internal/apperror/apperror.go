// Package apperror defines the application errors surfaced to API clients.
package apperror

import (
	"errors"
	"net/http"
)

// Kind categorizes an application error.
type Kind int

const (
	Internal Kind = iota
	// Validation is malformed or conflicting input.
	Validation
	// Auth is a failed credential check on login.
	Auth
	// Unauthenticated means the request carries no valid session.
	Unauthenticated
	// Permission means the caller is authenticated but not allowed.
	Permission
	NotFound
	// Unavailable means an optional backend is not configured.
	Unavailable
)

// Error is an error with a kind, a client-facing message and optional field errors.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode maps the error kind to an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case Validation, Auth:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case Permission:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Response is the JSON body written for an error.
type Response struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// ToResponse returns the client-facing body. Internal details are never included.
func (e *Error) ToResponse() Response {
	return Response{Error: e.Message, Fields: e.Fields}
}

// NewValidation returns a validation error for a single field.
func NewValidation(field, message string) *Error {
	return &Error{
		Kind:    Validation,
		Message: "validation failed",
		Fields:  map[string][]string{field: {message}},
	}
}

// NewValidationFields returns a validation error for several fields.
func NewValidationFields(fields map[string][]string) *Error {
	return &Error{Kind: Validation, Message: "validation failed", Fields: fields}
}

func NewAuth(message string) *Error {
	return &Error{Kind: Auth, Message: message}
}

func NewUnauthenticated(message string) *Error {
	return &Error{Kind: Unauthenticated, Message: message}
}

func NewPermission(message string) *Error {
	return &Error{Kind: Permission, Message: message}
}

func NewNotFound(message string) *Error {
	return &Error{Kind: NotFound, Message: message}
}

func NewUnavailable(message string) *Error {
	return &Error{Kind: Unavailable, Message: message}
}

// NewInternal wraps an unexpected error behind a generic message.
func NewInternal(message string, err error) *Error {
	return &Error{Kind: Internal, Message: message, Err: err}
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternal("internal server error", err)
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}
