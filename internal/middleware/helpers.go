package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/apperror"
)

// LayoutInjector copies layout data (user, CSRF token) from the Echo
// context into the Go context read by templ components. It is set once at
// startup in app/routes.go so this package never imports plugin types.
var LayoutInjector func(echo.Context, context.Context) context.Context

// IsHTMX reports whether the request came from HTMX and is not a boosted
// navigation.
func IsHTMX(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true" &&
		c.Request().Header.Get("HX-Boosted") != "true"
}

// IsAPIRequest reports whether the request targets /api/.
func IsAPIRequest(c echo.Context) bool {
	return strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// IsSecureRequest reports whether the client connection is HTTPS, directly
// or through a TLS-terminating proxy.
func IsSecureRequest(req *http.Request) bool {
	return req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https"
}

// Render writes a templ component with the given status code.
func Render(c echo.Context, statusCode int, component templ.Component) error {
	ctx := c.Request().Context()
	if LayoutInjector != nil {
		ctx = LayoutInjector(c, ctx)
	}

	c.Response().Header().Set("Content-Type", "text/html; charset=utf-8")
	c.Response().WriteHeader(statusCode)
	return component.Render(ctx, c.Response().Writer)
}

// statusOf is the status the central error handler will answer for err.
func statusOf(err error) int {
	return apperror.SafeCode(err)
}

func itoaSeconds(d time.Duration) string {
	return strconv.Itoa(int(d.Seconds()))
}
