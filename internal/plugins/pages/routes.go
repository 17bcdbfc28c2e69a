package pages

import (
	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/plugins/auth"
)

// RegisterRoutes mounts the page shells. Public pages still hydrate so the
// layout knows who is signed in. Middleware is attached per route because
// an Echo group with an empty prefix would claim every unmatched path.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	public := auth.Guard(false)
	e.GET("/", h.Home, public)
	e.GET("/courses", h.Catalog, public)

	protected := auth.Guard(true)
	e.GET("/dashboard", h.Dashboard, protected)
	e.GET("/profile", h.Profile, protected)
	e.GET("/courses/:id", h.Course, protected)
	e.GET("/quizzes", h.Quizzes, protected)
	e.GET("/nfts", h.NFTs, protected)
	e.GET("/subscription", h.Subscription, protected)

	e.GET("/admin", h.Admin, protected, requireAdminPage)
	e.GET("/admin/*", h.Admin, protected, requireAdminPage)
}
