package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keyxmakerx/edugate/internal/middleware"
	"github.com/keyxmakerx/edugate/internal/plugins/audit"
	"github.com/keyxmakerx/edugate/internal/plugins/auth"
	"github.com/keyxmakerx/edugate/internal/plugins/edge"
	"github.com/keyxmakerx/edugate/internal/plugins/pages"
	"github.com/keyxmakerx/edugate/internal/plugins/proxy"
	"github.com/keyxmakerx/edugate/internal/templates/layouts"
)

// healthTimeout bounds each dependency ping in /healthz.
const healthTimeout = 2 * time.Second

// RegisterRoutes sets up all application routes. It registers public routes
// directly and delegates to each plugin's route registration function.
//
// This is the single place where all routes are aggregated. When a new
// plugin is added, its routes are registered here.
func (a *App) RegisterRoutes() {
	e := a.Echo

	middleware.LayoutInjector = injectLayout

	// The edge gate sees every page request before its handler.
	e.Use(edge.Middleware(edge.NewGate(a.Sessions.Codec()), a.Metrics, a.Audit))

	// --- Infrastructure ---
	e.GET("/healthz", a.health)
	e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))

	// --- Plugin Routes ---
	auth.RegisterRoutes(e, auth.NewHandler(a.Audit))
	pages.RegisterRoutes(e, pages.NewHandler())

	api := e.Group("/api")
	proxy.RegisterRoutes(api, proxy.NewHandler(a.Backend, a.Metrics), proxy.Routes(a.Config.Backend.AnalyticsTimeout))

	admin := api.Group("/admin", auth.RequireAdmin())
	audit.RegisterRoutes(admin, audit.NewHandler(a.Audit))
}

// injectLayout copies the request's user and CSRF token into the context
// read by the layout.
func injectLayout(c echo.Context, ctx context.Context) context.Context {
	user := auth.GetUser(c)
	ctx = layouts.SetIsAuthenticated(ctx, user != nil)
	if user != nil {
		ctx = layouts.SetUserEmail(ctx, user.Email)
		ctx = layouts.SetIsAdmin(ctx, user.IsAdmin())
	}
	ctx = layouts.SetCSRFToken(ctx, middleware.GetCSRFToken(c))
	return layouts.SetActivePath(ctx, c.Request().URL.Path)
}

// health pings the stateful dependencies in use. The backend API is not
// pinged: degraded routes keep serving without it.
func (a *App) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "failing": "redis"})
		}
	}
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "failing": "mariadb"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
