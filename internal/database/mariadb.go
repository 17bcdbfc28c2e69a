// Package database provides connection setup for MariaDB and Redis.
// Redis holds server-side session records; MariaDB holds the auth event
// log. Both are optional and created once at startup.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// MariaDB driver, imported for its registration side effect.
	_ "github.com/go-sql-driver/mysql"

	"github.com/keyxmakerx/edugate/internal/config"
)

// maxPingRetries bounds startup waiting for MariaDB and Redis.
const maxPingRetries = 10

// NewMariaDB opens a pool with the configured limits and pings it,
// retrying with exponential backoff while the server is still starting.
func NewMariaDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening mariadb connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitFor("mariadb", maxPingRetries, time.Second, db.PingContext); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// waitFor calls ping up to attempts times, doubling the wait between tries
// up to 30s. name labels the dependency in logs and the final error.
func waitFor(name string, attempts int, backoff time.Duration, ping func(context.Context) error) error {
	var pingErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		pingErr = ping(ctx)
		cancel()

		if pingErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		slog.Warn(name+" not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Int("max_retries", attempts),
			slog.Duration("backoff", backoff),
			slog.Any("error", pingErr),
		)
		time.Sleep(backoff)
		backoff = min(backoff*2, 30*time.Second)
	}
	return fmt.Errorf("pinging %s after %d attempts: %w", name, attempts, pingErr)
}
