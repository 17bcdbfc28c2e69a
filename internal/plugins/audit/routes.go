package audit

import "github.com/labstack/echo/v4"

// RegisterRoutes mounts the audit listing on an admin-only API group.
func RegisterRoutes(admin *echo.Group, h *Handler) {
	admin.GET("/auth-events", h.List)
}
