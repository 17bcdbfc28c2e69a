package proxy

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/plugins/session"
)

// ExtractToken returns the bearer token from the Authorization header,
// falling back to the access_token cookie.
func ExtractToken(c echo.Context) string {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if ck, err := c.Cookie(session.AccessTokenCookie); err == nil {
		return ck.Value
	}
	return ""
}
