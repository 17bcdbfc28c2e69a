// Package apperror provides domain-specific error types for edugate.
// These errors carry an HTTP status code and a user-safe message. The Echo
// error handler maps them to appropriate HTTP responses automatically.
//
// NEVER return raw infrastructure errors to the client. Always wrap them in
// an apperror type or return a generic internal error.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the base error type for all domain errors. It carries an
// HTTP status code, a machine-readable error type, and a human-readable
// message safe to show to the client.
type AppError struct {
	// Code is the HTTP status code (e.g., 401, 400, 500).
	Code int `json:"-"`

	// Type is a machine-readable error classifier (e.g., "unauthenticated").
	Type string `json:"type"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// Payload is an upstream JSON body to relay instead of the default
	// {error, message} shape. Only set for upstream errors.
	Payload map[string]any `json:"-"`

	// Internal holds the underlying error for logging. Never exposed to client.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Body returns the JSON body sent to API clients. Upstream payloads are
// relayed as-is with an "error" field guaranteed.
func (e *AppError) Body() map[string]any {
	if e.Payload != nil {
		body := make(map[string]any, len(e.Payload)+1)
		for k, v := range e.Payload {
			body[k] = v
		}
		if _, ok := body["error"]; !ok {
			body["error"] = e.Message
		}
		return body
	}
	return map[string]any{
		"error":   e.Message,
		"type":    e.Type,
		"message": e.Message,
	}
}

// --- Constructors for the error taxonomy ---

// NewUnauthenticated creates a 401 error for a missing or rejected bearer token.
func NewUnauthenticated(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Type:    "unauthenticated",
		Message: message,
	}
}

// NewForbidden creates a 403 Forbidden error.
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Type:    "forbidden",
		Message: message,
	}
}

// NewValidation creates a 400 error for a missing or malformed request field.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    "validation_error",
		Message: message,
	}
}

// NewBadRequest creates a 400 Bad Request error for unparseable requests.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    "bad_request",
		Message: message,
	}
}

// NewUpstream relays a non-2xx backend answer. The backend status is kept
// and the backend payload (may be nil) is relayed to the client.
func NewUpstream(status int, message string, payload map[string]any) *AppError {
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &AppError{
		Code:    status,
		Type:    "upstream_error",
		Message: message,
		Payload: payload,
	}
}

// NewUpstreamUnreachable creates a 500 error for a backend call that could
// not complete. The cause is logged, never shown.
func NewUpstreamUnreachable(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "upstream_unreachable",
		Message:  "The service is temporarily unavailable. Please try again.",
		Internal: err,
	}
}

// NewTimeout creates a 408 error for an upstream call cancelled by an
// explicit route timeout.
func NewTimeout(err error) *AppError {
	return &AppError{
		Code:     http.StatusRequestTimeout,
		Type:     "upstream_timeout",
		Message:  "The request timed out. Please try again.",
		Internal: err,
	}
}

// errMissingContext is the shared internal error for nil precondition checks.
var errMissingContext = errors.New("missing required context")

// NewMissingContext creates a 500 error for handler nil-context guards
// (auth state not set, dependency not wired).
func NewMissingContext() *AppError {
	return NewInternal(errMissingContext)
}

// NewInternal creates a 500 Internal Server Error. The real error is stored
// in Internal for logging but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// SafeMessage returns the client-safe error message from an error. If the
// error is an AppError, returns its Message field (which is safe to expose).
// For any other error type, returns a generic message.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the HTTP status code from an AppError, or 500 for
// any other error type.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
