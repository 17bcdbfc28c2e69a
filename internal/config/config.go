// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
)

// DefaultBackendURL is used whenever BACKEND_API_URL is unset or blank.
const DefaultBackendURL = "http://localhost:8000/api"

// Session backends accepted by SESSION_BACKEND.
const (
	SessionBackendRedis  = "redis"
	SessionBackendCookie = "cookie"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string `env:"ENV" envDefault:"development"`

	// Port is the HTTP listen port (default: 8080).
	Port int `env:"PORT" envDefault:"8080"`

	// BaseURL is the public-facing URL used for links and CORS.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// LogLevel controls log verbosity: "debug", "info", "warn", "error".
	LogLevel string `env:"LOG_LEVEL" envDefault:"debug"`

	// CORSOrigins lists extra origins allowed to call /api cross-origin.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	Backend  BackendConfig
	Redis    RedisConfig
	Session  SessionConfig
	Audit    AuditConfig
	Database DatabaseConfig
}

// BackendConfig points at the external REST API every proxy route calls.
type BackendConfig struct {
	// URL is the backend base URL, including any /api suffix.
	URL string `env:"BACKEND_API_URL" envDefault:"http://localhost:8000/api"`

	// Timeout is the transport-level timeout applied to every upstream call.
	Timeout time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`

	// AnalyticsTimeout is the explicit per-call timeout for analytics routes.
	// Exceeding it answers 408.
	AnalyticsTimeout time.Duration `env:"ANALYTICS_TIMEOUT" envDefault:"10s"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
}

// SessionConfig controls the token store and the user cookie.
type SessionConfig struct {
	// Backend selects where session records live: "redis" (server-side record
	// referenced from the signed cookie) or "cookie" (cookies only).
	Backend string `env:"SESSION_BACKEND" envDefault:"redis"`

	// TTL is how long sessions and their cookies last.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// SecretKey signs the user cookie and seals refresh tokens at rest.
	SecretKey string `env:"SECRET_KEY"`

	// AllowUnsignedUserCookie accepts the legacy plain-JSON user cookie.
	AllowUnsignedUserCookie bool `env:"ALLOW_UNSIGNED_USER_COOKIE" envDefault:"false"`

	// ProfileCacheTTL bounds how long a fetched profile is reused per token.
	ProfileCacheTTL time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"30s"`
}

// AuditConfig toggles the MariaDB-backed auth event log.
type AuditConfig struct {
	Enabled bool `env:"AUDIT_ENABLED" envDefault:"false"`
}

// DatabaseConfig holds MariaDB connection parameters. Individual fields
// (Host, User, Password, Name) are read from separate env vars so container
// orchestrators can manage each independently. If DATABASE_URL is set, it
// takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format. If no port is
	// specified, 3306 is appended automatically.
	Host     string `env:"DB_HOST" envDefault:"localhost:3306"`
	User     string `env:"DB_USER" envDefault:"edugate"`
	Password string `env:"DB_PASSWORD" envDefault:"edugate"`
	Name     string `env:"DB_NAME" envDefault:"edugate"`

	// URL bypasses the individual fields when set.
	URL string `env:"DATABASE_URL"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"2"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	// MigrationsPath is the directory of golang-migrate SQL files.
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"db/migrations"`
}

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// fields using the driver's Config.FormatDSN() so special characters in
// passwords survive.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	// A blank BACKEND_API_URL still means "use the default", never "fail".
	cfg.Backend.URL = strings.TrimRight(strings.TrimSpace(cfg.Backend.URL), "/")
	if cfg.Backend.URL == "" {
		cfg.Backend.URL = DefaultBackendURL
	}

	switch cfg.Session.Backend {
	case SessionBackendRedis, SessionBackendCookie:
	default:
		return nil, fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q",
			SessionBackendRedis, SessionBackendCookie, cfg.Session.Backend)
	}

	if !cfg.IsDevelopment() {
		if cfg.Session.SecretKey == "" {
			return nil, fmt.Errorf("SECRET_KEY is required in production")
		}
		if len(cfg.Session.SecretKey) < 32 {
			return nil, fmt.Errorf("SECRET_KEY must be at least 32 characters in production")
		}
	}

	// Provide a dev-only default secret so local dev works without .env.
	if cfg.Session.SecretKey == "" {
		cfg.Session.SecretKey = "dev-secret-key-do-not-use-in-production!!"
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// UsesRedisSessions reports whether session records are kept in Redis.
func (c *Config) UsesRedisSessions() bool {
	return c.Session.Backend == SessionBackendRedis
}
