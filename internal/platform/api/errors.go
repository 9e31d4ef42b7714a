package api

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError is one entry of the backend's validation-error shape: a list of
// {location, message} pairs.
type FieldError struct {
	Location []string `json:"loc"`
	Message  string   `json:"msg"`
}

// ValidationError is a structured, field-level error. It is recoverable by
// the user without losing other entered data.
type ValidationError struct {
	Fields []FieldError
}

// Error flattens the field list into a single human-readable string.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		loc := strings.Join(f.Location, " → ")
		if loc == "" {
			loc = "field"
		}
		parts[i] = fmt.Sprintf("%s: %s", loc, f.Message)
	}
	return strings.Join(parts, "; ")
}

// NewValidationError builds a single-field validation error for preconditions
// the client checks before any network call.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Location: []string{field}, Message: msg}}}
}

// AuthError means the backend rejected the credential. The identity has
// already been cleared by the time this error reaches the caller; the user
// must re-enter the login boundary.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("not authorized: %s", e.Message)
	}
	return fmt.Sprintf("not authorized (status %d)", e.StatusCode)
}

// TransientError is a network failure or a 5xx response. Reads are retried
// once automatically; writes surface it to the initiating action.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("transient request failure: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// APIError is a non-validation domain error returned by the backend, e.g.
// attempting an operation the session's status forbids.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// IsAuthError reports whether err is (or wraps) an authorization failure.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether err is (or wraps) a transient failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
