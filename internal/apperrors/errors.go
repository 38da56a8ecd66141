// Package apperrors defines the failure kinds every service operation reports.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the targeted resource or id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
	// ErrForbidden indicates the caller is authenticated but does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing, invalid or expired credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation indicates the input was rejected by validation or by a storage reference check.
	ErrValidation = errors.New("validation failed")
)

// ServiceError carries a failure kind, a stable code and a message safe to expose to clients.
type ServiceError struct {
	kind    error
	code    string
	message string
	err     error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.err)
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is / errors.As.
func (e *ServiceError) Unwrap() []error {
	unwrapped := make([]error, 0, 2)
	if e.kind != nil {
		unwrapped = append(unwrapped, e.kind)
	}
	if e.err != nil {
		unwrapped = append(unwrapped, e.err)
	}
	return unwrapped
}

// Code returns the dotted operation.reason code.
func (e *ServiceError) Code() string {
	return e.code
}

// Message returns the client-facing message.
func (e *ServiceError) Message() string {
	return e.message
}

// Kind returns the failure kind sentinel, or nil for internal failures.
func (e *ServiceError) Kind() error {
	return e.kind
}

// New builds a ServiceError of the given kind without an underlying cause.
func New(kind error, operation, reason, message string) error {
	return Wrap(kind, operation, reason, message, nil)
}

// Wrap builds a ServiceError of the given kind around cause.
func Wrap(kind error, operation, reason, message string, cause error) error {
	return &ServiceError{
		kind:    kind,
		code:    fmt.Sprintf("%s.%s", operation, reason),
		message: message,
		err:     cause,
	}
}

// Internal builds a ServiceError without a kind; the boundary reports it as a server failure.
func Internal(operation, reason string, cause error) error {
	return Wrap(nil, operation, reason, "Internal server error", cause)
}

// KindOf returns the failure kind of err, or nil when err carries none.
func KindOf(err error) error {
	for _, kind := range []error{ErrNotFound, ErrConflict, ErrForbidden, ErrUnauthorized, ErrValidation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// CodeOf returns the code carried by err when it wraps a ServiceError.
func CodeOf(err error) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code()
	}
	return ""
}

// MessageOf returns the client-facing message carried by err, falling back to fallback.
func MessageOf(err error, fallback string) string {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Message() != "" {
		return serviceErr.Message()
	}
	return fallback
}
