// Package session is the token store: it persists the access token, the
// refresh token and the cached user record for one browser, in cookies and
// optionally in a Redis session record the signed user cookie points at.
//
// Stores do not validate token structure or expiry. The backend does that on
// every call.
package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// RoleAdmin is the role value that unlocks admin paths.
const RoleAdmin = "admin"

// ErrIncompleteSession is returned by Save when an access token is given
// without a user record.
var ErrIncompleteSession = errors.New("session: access token present without user")

// UserID is the backend's user identifier. The backend sends numbers for
// some deployments and strings for others; both decode into the textual form.
type UserID string

// String returns the identifier as text.
func (id UserID) String() string { return string(id) }

// UnmarshalJSON accepts a JSON number or string.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// MarshalJSON writes all-digit identifiers back as numbers.
func (id UserID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// User is the backend's user record. Only Role carries meaning here; every
// other field is kept in Profile and round-trips untouched.
type User struct {
	ID      UserID
	Email   string
	Role    string
	Profile map[string]json.RawMessage
}

// IsAdmin reports whether the user may enter admin paths.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// UnmarshalJSON splits the known fields from the profile fields.
func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*u = User{}
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &u.ID); err != nil {
			return err
		}
		delete(raw, "id")
	}
	if v, ok := raw["email"]; ok {
		if err := json.Unmarshal(v, &u.Email); err != nil {
			return fmt.Errorf("user email: %w", err)
		}
		delete(raw, "email")
	}
	if v, ok := raw["role"]; ok {
		if err := json.Unmarshal(v, &u.Role); err != nil {
			return fmt.Errorf("user role: %w", err)
		}
		delete(raw, "role")
	}
	if len(raw) > 0 {
		u.Profile = raw
	}
	return nil
}

// MarshalJSON merges the profile fields back with the known ones.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Profile)+3)
	for k, v := range u.Profile {
		out[k] = v
	}
	out["id"] = u.ID
	if u.Email != "" {
		out["email"] = u.Email
	}
	if u.Role != "" {
		out["role"] = u.Role
	}
	return json.Marshal(out)
}

// Session is the authenticated identity held for one client. Empty strings
// stand for absent tokens.
type Session struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// IsZero reports whether nothing is stored.
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.User == nil
}

// validate enforces "access token present implies user present".
func (s Session) validate() error {
	if s.AccessToken != "" && s.User == nil {
		return ErrIncompleteSession
	}
	return nil
}
