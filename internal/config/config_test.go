package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DefaultBackendURL, cfg.Backend.URL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Backend.AnalyticsTimeout)
	assert.Equal(t, SessionBackendRedis, cfg.Session.Backend)
	assert.False(t, cfg.Session.AllowUnsignedUserCookie)
	assert.NotEmpty(t, cfg.Session.SecretKey, "dev default secret should be filled in")
	assert.True(t, cfg.UsesRedisSessions())
	assert.Equal(t, "db/migrations", cfg.Database.MigrationsPath)
}

func TestLoad_BlankBackendURLFallsBack(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("BACKEND_API_URL", "   ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultBackendURL, cfg.Backend.URL)
}

func TestLoad_TrimsTrailingSlash(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("BACKEND_API_URL", "https://api.example.com/api/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api", cfg.Backend.URL)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)

	t.Setenv("SECRET_KEY", "too-short")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("SECRET_KEY", "0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
}

func TestLoad_RejectsUnknownSessionBackend(t *testing.T) {
	t.Setenv("ENV", "development")
	t.Setenv("SESSION_BACKEND", "localstorage")

	_, err := Load()
	require.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "mariadb", User: "u", Password: "p@ss", Name: "edugate"}
	assert.Contains(t, d.DSN(), "tcp(mariadb:3306)/edugate")

	d.URL = "u:p@tcp(db:3307)/x"
	assert.Equal(t, "u:p@tcp(db:3307)/x", d.DSN())
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		cfg := &Config{LogLevel: in}
		assert.Equal(t, want, cfg.SlogLevel(), in)
	}
}
