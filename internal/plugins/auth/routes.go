package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/middleware"
)

// RegisterRoutes mounts the auth surfaces. The Provider middleware must
// already be applied to e. Login and register are rate limited per IP:
// 10 attempts per minute for login, 5 for register.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	loginLimit := middleware.RateLimit(10, time.Minute)
	registerLimit := middleware.RateLimit(5, time.Minute)

	// HTML forms.
	e.GET("/login", h.LoginForm)
	e.POST("/login", h.Login, loginLimit)
	e.GET("/register", h.RegisterForm)
	e.POST("/register", h.Register, registerLimit)
	e.POST("/logout", h.Logout)

	// JSON for script clients.
	api := e.Group("/api/auth-proxy")
	api.POST("/login", h.APILogin, loginLimit)
	api.POST("/register", h.APIRegister, registerLimit)
	api.POST("/refresh", h.APIRefresh)
	api.POST("/logout", h.APILogout)
	api.GET("/profile", h.APIProfile)
	api.GET("/session", h.APISession)
}
