package proxy

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts every route on the /api group.
func RegisterRoutes(api *echo.Group, h *Handler, routes []Route) {
	for _, r := range routes {
		api.Add(r.Method, r.Path, h.Serve(r))
	}
}
