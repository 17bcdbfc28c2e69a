// Package auth owns the session lifecycle against the backend's /auth/*
// endpoints: the Service that wraps those calls, the per-request State
// machine handlers read auth from, the route guard for HTML pages, and the
// login/register/logout surfaces (JSON under /api/auth-proxy and HTML forms).
//
// Passwords never touch this server's storage. The backend validates them
// and returns tokens, which the session package persists.
package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// --- Request DTOs ---

// Credentials is the login request body, from JSON or a form.
type Credentials struct {
	Email    string `json:"email" form:"email" validate:"required,email,max=255"`
	Password string `json:"password" form:"password" validate:"required,max=128"`
}

// RegisterInput is the registration request body. Fields the backend
// accepts beyond these (wallet address, referral code) travel in Extra.
type RegisterInput struct {
	Email           string `json:"email" form:"email" validate:"required,email,max=255"`
	Password        string `json:"password" form:"password" validate:"required,min=8,max=128"`
	PasswordConfirm string `json:"password_confirm,omitempty" form:"password_confirm" validate:"omitempty,eqfield=Password"`
	Username        string `json:"username,omitempty" form:"username" validate:"omitempty,min=2,max=50"`
	FirstName       string `json:"first_name,omitempty" form:"first_name" validate:"max=100"`
	LastName        string `json:"last_name,omitempty" form:"last_name" validate:"max=100"`

	Extra map[string]any `json:"-" form:"-"`
}

// payload is the body sent to POST /auth/register/.
func (in RegisterInput) payload() map[string]any {
	body := make(map[string]any, len(in.Extra)+6)
	for k, v := range in.Extra {
		body[k] = v
	}
	body["email"] = in.Email
	body["password"] = in.Password
	if in.PasswordConfirm != "" {
		body["password_confirm"] = in.PasswordConfirm
	}
	if in.Username != "" {
		body["username"] = in.Username
	}
	if in.FirstName != "" {
		body["first_name"] = in.FirstName
	}
	if in.LastName != "" {
		body["last_name"] = in.LastName
	}
	return body
}

// --- Errors ---

// AuthError is a non-2xx answer from the backend's auth endpoints.
// Message is the backend's own message, shown to the user verbatim.
type AuthError struct {
	Status  int
	Message string
	Payload map[string]any
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed (%d): %s", e.Status, e.Message)
}

// NetworkError is an auth call that never completed.
type NetworkError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("auth %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// errNotAuthenticated is returned for calls that need a stored session.
var errNotAuthenticated = &AuthError{Status: http.StatusUnauthorized, Message: "Not authenticated"}

// errMalformedResponse is a 2xx auth answer without the expected tokens.
var errMalformedResponse = errors.New("auth response carried no access token")

// --- State ---

// Status is the auth state machine position.
type Status int

const (
	StatusUninitialized Status = iota
	StatusLoading
	StatusAuthenticated
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	default:
		return "uninitialized"
	}
}

// MarshalText makes Status render as its name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
