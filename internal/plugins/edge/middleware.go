package edge

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/plugins/audit"
	"github.com/keyxmakerx/edugate/internal/plugins/session"
)

// skipPrefixes are never gated: JSON routes answer 401 themselves.
var skipPrefixes = []string{"/api/", "/static/"}

var skipPaths = map[string]bool{"/healthz": true, "/metrics": true, "/favicon.ico": true}

// Observer counts edge redirects.
type Observer interface {
	ObserveEdgeRedirect(reason string)
}

// Middleware runs the gate before page handlers. Redirects use 307 so a
// POST keeps its method. Admin denials are written to the audit log.
func Middleware(gate *Gate, observer Observer, recorder audit.Recorder) echo.MiddlewareFunc {
	if recorder == nil {
		recorder = audit.Nop{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if skip(path) {
				return next(c)
			}

			cookies := make(map[string]string, len(session.AuthCookies))
			for _, name := range session.AuthCookies {
				if ck, err := req.Cookie(name); err == nil {
					cookies[name] = ck.Value
				}
			}

			d := gate.Decide(path, cookies)
			if d.ClearAuthCookies {
				for name := range cookies {
					c.SetCookie(&http.Cookie{
						Name:    name,
						Path:    "/",
						MaxAge:  -1,
						Expires: time.Unix(0, 0),
					})
				}
			}
			if d.Allowed() {
				return next(c)
			}

			if observer != nil {
				observer.ObserveEdgeRedirect(d.Reason)
			}
			if d.Reason == ReasonAdminRole || d.Reason == ReasonAdminLogin {
				recorder.Record(req.Context(), audit.Event{
					Action:    audit.ActionEdgeDenied,
					IP:        c.RealIP(),
					UserAgent: req.UserAgent(),
					Details:   map[string]any{"path": path, "reason": d.Reason},
				})
			}
			return c.Redirect(http.StatusTemporaryRedirect, d.Redirect)
		}
	}
}

func skip(path string) bool {
	if skipPaths[path] {
		return true
	}
	for _, p := range skipPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
