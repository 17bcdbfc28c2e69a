package auth

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/apperror"
	"github.com/keyxmakerx/edugate/internal/middleware"
)

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// Outcome is what a guarded page should do for a given state.
type Outcome int

const (
	// OutcomeLoading shows the loading placeholder.
	OutcomeLoading Outcome = iota
	// OutcomeDefer renders nothing and leaves the redirect to the edge.
	OutcomeDefer
	// OutcomeRender renders the page.
	OutcomeRender
)

// Evaluate decides a guarded page's outcome from a state snapshot.
func Evaluate(snap Snapshot, requireAuth bool) Outcome {
	switch {
	case snap.Status == StatusUninitialized || snap.Status == StatusLoading:
		return OutcomeLoading
	case requireAuth && !snap.IsAuthenticated:
		return OutcomeDefer
	default:
		return OutcomeRender
	}
}

// Guard hydrates the request's State and gates the page. Loading answers
// 503 with the placeholder. Defer answers with a best-effort redirect to
// the login page carrying the original path, for requests the edge gate
// did not intercept.
func Guard(requireAuth bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			state := GetState(c)
			if state == nil {
				return apperror.NewMissingContext()
			}
			if err := state.Hydrate(c.Request().Context()); err != nil {
				slog.Warn("session hydration failed",
					slog.String("path", c.Request().URL.Path),
					slog.Any("error", err),
				)
			}

			switch Evaluate(state.Snapshot(), requireAuth) {
			case OutcomeLoading:
				c.Response().Header().Set("Retry-After", "1")
				return middleware.Render(c, http.StatusServiceUnavailable, LoadingPage())
			case OutcomeDefer:
				return redirect(c, LoginRedirect(c.Request().URL.RequestURI()))
			default:
				return next(c)
			}
		}
	}
}

// RequireAdmin guards admin API routes: 401 without a session and 403 for
// a signed-in non-admin.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			state := GetState(c)
			if state == nil {
				return apperror.NewMissingContext()
			}
			if err := state.Hydrate(c.Request().Context()); err != nil {
				return apperror.NewInternal(err)
			}
			user := state.User()
			if user == nil {
				return apperror.NewUnauthenticated("authentication required")
			}
			if !user.IsAdmin() {
				return apperror.NewForbidden("admin access required")
			}
			return next(c)
		}
	}
}

// LoginRedirect builds the login URL that returns to target afterwards.
func LoginRedirect(target string) string {
	if target == "" || target == "/" {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"redirect": {target}}.Encode()
}

// SafeRedirect returns target when it is a local absolute path, else
// fallback. Protocol-relative and backslash forms are rejected.
func SafeRedirect(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") ||
		strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return fallback
	}
	u, err := url.Parse(target)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return target
}

// redirect sends a browser to path. HTMX requests get HX-Redirect so the
// whole page navigates.
func redirect(c echo.Context, path string) error {
	if middleware.IsHTMX(c) {
		c.Response().Header().Set("HX-Redirect", path)
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, path)
}
