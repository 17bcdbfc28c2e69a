package edge

import (
	"net/url"

	"github.com/keyxmakerx/edugate/internal/plugins/session"
)

// Redirect reasons, used as metric labels and audit details.
const (
	ReasonAdminLogin    = "admin_login"
	ReasonAdminRole     = "admin_role"
	ReasonDetail        = "detail"
	ReasonProtected     = "protected"
	ReasonAuthenticated = "authenticated"
)

// Decision is the gate's answer. An empty Redirect allows the request.
type Decision struct {
	Redirect string
	Reason   string

	// ClearAuthCookies asks the adapter to expire any auth cookies the
	// request carries. Set when an anonymous visitor enters login/register.
	ClearAuthCookies bool
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool { return d.Redirect == "" }

// Gate evaluates requests against Table. Codec verifies the user cookie.
type Gate struct {
	Table       Table
	Codec       session.Codec
	LoginPath   string
	HomePath    string
	LandingPath string
}

// NewGate returns a gate over the default table and paths.
func NewGate(codec session.Codec) *Gate {
	return &Gate{
		Table:       DefaultTable(),
		Codec:       codec,
		LoginPath:   "/login",
		HomePath:    "/",
		LandingPath: "/dashboard",
	}
}

// Decide evaluates path against the cookies. A user cookie that fails to
// decode counts as not logged in, which sends admin paths to the login
// page rather than letting them through.
func (g *Gate) Decide(path string, cookies map[string]string) Decision {
	user := g.user(cookies[session.UserCookie])
	loggedIn := user != nil

	rule, ok := g.Table.Match(path)
	if !ok {
		return Decision{}
	}

	switch rule.Condition {
	case RequireAdmin:
		if !loggedIn {
			return Decision{Redirect: g.LoginPath, Reason: ReasonAdminLogin}
		}
		if !user.IsAdmin() {
			return Decision{Redirect: g.HomePath, Reason: ReasonAdminRole}
		}
	case RequireAuth:
		if !loggedIn {
			reason := ReasonProtected
			if rule.Kind == KindDetail {
				reason = ReasonDetail
			}
			return Decision{Redirect: g.loginWithReturn(path), Reason: reason}
		}
	case AnonymousOnly:
		if loggedIn {
			return Decision{Redirect: g.LandingPath, Reason: ReasonAuthenticated}
		}
		return Decision{ClearAuthCookies: true}
	}
	return Decision{}
}

func (g *Gate) user(raw string) *session.User {
	if raw == "" || g.Codec == nil {
		return nil
	}
	claims, err := g.Codec.Decode(raw)
	if err != nil || claims.User == nil {
		return nil
	}
	return claims.User
}

func (g *Gate) loginWithReturn(path string) string {
	return g.LoginPath + "?" + url.Values{"redirect": {path}}.Encode()
}
