// Package audit records authentication events (logins, failed logins,
// registrations, logouts, refreshes and edge denials) to the auth_events
// table. Recording never blocks or fails the request that triggered it.
package audit

import "time"

// --- Action Constants ---
// Each action string follows the pattern "resource.verb".

const (
	ActionLogin       = "auth.login"
	ActionLoginFailed = "auth.login_failed"
	ActionRegister    = "auth.register"
	ActionLogout      = "auth.logout"
	ActionRefresh     = "auth.refresh"
	ActionEdgeDenied  = "edge.denied"
)

// Event is one recorded authentication event. UserID is empty for
// anonymous events like a failed login.
type Event struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	UserID    string         `json:"user_id,omitempty"`
	Email     string         `json:"email,omitempty"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
