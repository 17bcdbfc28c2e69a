// Package app is the application bootstrap and dependency injection root.
// It creates and holds all shared infrastructure (Redis client, audit DB
// pool, backend client, Echo instance) and wires together all plugins.
package app

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/keyxmakerx/edugate/internal/apperror"
	"github.com/keyxmakerx/edugate/internal/backend"
	"github.com/keyxmakerx/edugate/internal/config"
	"github.com/keyxmakerx/edugate/internal/metrics"
	"github.com/keyxmakerx/edugate/internal/middleware"
	"github.com/keyxmakerx/edugate/internal/plugins/audit"
	"github.com/keyxmakerx/edugate/internal/plugins/auth"
	"github.com/keyxmakerx/edugate/internal/plugins/session"
	"github.com/keyxmakerx/edugate/internal/templates/pages"
)

// App holds all shared dependencies and the Echo HTTP server instance.
// Created once at startup in main.go and used to register all routes.
type App struct {
	// Config holds the loaded application configuration.
	Config *config.Config

	// DB is the MariaDB pool for the audit log. Nil when auditing is off.
	DB *sql.DB

	// Redis holds session records. Nil with cookie-only sessions.
	Redis *redis.Client

	// Echo is the HTTP server instance.
	Echo *echo.Echo

	Metrics  *metrics.Metrics
	Backend  *backend.Client
	Sessions *session.Manager
	Auth     *auth.Service
	Audit    audit.Recorder
}

// New creates a new App instance with the given dependencies and configures
// the Echo server with global middleware and error handling. db and rdb
// may be nil.
func New(cfg *config.Config, db *sql.DB, rdb *redis.Client) (*App, error) {
	e := echo.New()

	// Disable Echo's default banner and startup message -- we log our own.
	e.HideBanner = true
	e.HidePort = true

	// c.RealIP() must see the client, not the proxy, for rate limiting.
	middleware.TrustedProxies(e, middleware.DefaultTrustedProxies)

	app := &App{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Echo:    e,
		Metrics: metrics.New(),
		Audit:   audit.Nop{},
	}

	var records *session.RedisStore
	if cfg.UsesRedisSessions() {
		if rdb == nil {
			return nil, errors.New("redis sessions configured without a redis client")
		}
		var err error
		records, err = session.NewRedisStore(rdb, cfg.Session.SecretKey, cfg.Session.TTL)
		if err != nil {
			return nil, fmt.Errorf("creating session store: %w", err)
		}
	}
	app.Sessions = session.NewManager(newCodec(cfg), records, session.CookieOptions{
		TTL:    cfg.Session.TTL,
		Secure: !cfg.IsDevelopment(),
	})

	app.Backend = backend.New(cfg.Backend.URL, cfg.Backend.Timeout, app.Metrics)
	app.Auth = auth.NewService(app.Backend, cfg.Session.ProfileCacheTTL)
	if db != nil {
		app.Audit = audit.NewRecorder(audit.NewRepository(db))
	}

	// Register global middleware in order of execution.
	app.setupMiddleware()

	// Register the custom error handler that maps AppErrors to HTTP responses.
	e.HTTPErrorHandler = app.errorHandler

	e.Static("/static", "static")

	return app, nil
}

// newCodec picks the user cookie format. The unsigned legacy cookie is
// opt-in only.
func newCodec(cfg *config.Config) session.Codec {
	if cfg.Session.AllowUnsignedUserCookie {
		slog.Warn("ALLOW_UNSIGNED_USER_COOKIE is set: user cookies are not signed and role claims can be forged")
		return session.PlainCodec{}
	}
	return session.NewSignedCodec(cfg.Session.SecretKey, cfg.Session.TTL)
}

// setupMiddleware registers global middleware on the Echo instance.
// Order matters: outermost (recovery) runs first, innermost (auth state)
// runs last before the route handler.
func (a *App) setupMiddleware() {
	// Panic recovery -- must be outermost to catch panics from all other middleware.
	a.Echo.Use(middleware.Recovery())

	a.Echo.Use(middleware.RequestID())
	a.Echo.Use(middleware.RequestLogger())
	a.Echo.Use(a.Metrics.Middleware())

	a.Echo.Use(middleware.SecurityHeaders(!a.Config.IsDevelopment()))

	a.Echo.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   append([]string{a.Config.BaseURL}, a.Config.CORSOrigins...),
		AllowCredentials: true,
	}))

	// CSRF -- double-submit cookie pattern on state-changing form posts.
	a.Echo.Use(middleware.CSRF())

	// Every request gets its auth State; the edge gate then redirects page
	// requests from the cookies alone.
	a.Echo.Use(auth.NewProvider(a.Sessions, a.Auth).Middleware())
}

// errorHandler is the custom Echo error handler. It maps domain errors
// (AppError) to appropriate HTTP responses, and renders error pages for
// browser requests or JSON for API requests.
//
// For HTMX partial requests that hit errors, we set HX-Retarget and
// HX-Reswap headers so the error page replaces the full body instead of
// being swapped into a partial target.
//
// For 401 errors on browser requests, we redirect to the login page.
func (a *App) errorHandler(err error, c echo.Context) {
	// Don't double-write if response is already committed.
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "An unexpected error occurred"
	var body map[string]any

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		message = appErr.Message
		body = appErr.Body()

		// Log internal errors with the underlying cause.
		if appErr.Internal != nil {
			slog.Error("internal error",
				slog.String("type", appErr.Type),
				slog.String("message", appErr.Message),
				slog.Any("internal", appErr.Internal),
				slog.String("path", c.Request().URL.Path),
				slog.String("request_id", middleware.GetRequestID(c)),
			)
		}
	} else {
		// Check for Echo's built-in HTTP errors (e.g., 404 from router).
		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			code = echoErr.Code
			if msg, ok := echoErr.Message.(string); ok {
				message = msg
			} else {
				message = defaultErrorMessage(code)
			}
		} else {
			slog.Error("unhandled error",
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
				slog.String("request_id", middleware.GetRequestID(c)),
			)
		}
	}

	// API requests always get JSON.
	if middleware.IsAPIRequest(c) {
		if body == nil {
			body = map[string]any{"error": message, "message": message}
		}
		_ = c.JSON(code, body)
		return
	}

	// For HTMX requests, redirect to login on 401 so the browser navigates
	// instead of swapping error HTML into a fragment target.
	if middleware.IsHTMX(c) {
		if code == http.StatusUnauthorized {
			c.Response().Header().Set("HX-Redirect", auth.LoginPath)
			_ = c.NoContent(http.StatusNoContent)
			return
		}
		c.Response().Header().Set("HX-Retarget", "body")
		c.Response().Header().Set("HX-Reswap", "innerHTML")
	}

	if code == http.StatusUnauthorized {
		_ = c.Redirect(http.StatusSeeOther, auth.LoginPath)
		return
	}

	if code >= http.StatusInternalServerError {
		// Never show infrastructure detail to a browser.
		message = defaultErrorMessage(code)
	}
	_ = middleware.Render(c, code, pages.ErrorPage(code, message))
}

// defaultErrorMessage returns a user-friendly message for common HTTP status codes
// when no specific message was provided by the error.
func defaultErrorMessage(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "The request was invalid or cannot be processed."
	case http.StatusUnauthorized:
		return "You need to log in to access this page."
	case http.StatusForbidden:
		return "You don't have permission to access this resource."
	case http.StatusNotFound:
		return "The page you're looking for doesn't exist or has been moved."
	case http.StatusMethodNotAllowed:
		return "This action is not allowed."
	case http.StatusRequestTimeout:
		return "The request took too long. Please try again."
	case http.StatusTooManyRequests:
		return "You're making too many requests. Please slow down."
	case http.StatusInternalServerError:
		return "Something went wrong on our end. Please try again."
	case http.StatusBadGateway:
		return "The server received an invalid response."
	case http.StatusServiceUnavailable:
		return "The service is temporarily unavailable. Please try again later."
	default:
		return "An unexpected error occurred."
	}
}

// Start begins listening for HTTP requests on the configured port.
func (a *App) Start() error {
	addr := fmt.Sprintf(":%d", a.Config.Port)
	slog.Info("starting edugate server",
		slog.String("addr", addr),
		slog.String("env", a.Config.Env),
		slog.String("backend", a.Backend.BaseURL()),
	)
	return a.Echo.Start(addr)
}
