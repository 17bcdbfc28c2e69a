package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"

	// Reads db/migrations from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// auditMigrationsTable keeps the audit schema's version apart from any
// table another service might own in the same database.
const auditMigrationsTable = "edugate_schema_migrations"

// RunMigrations brings the auth_events schema up to the newest version in
// migrationsPath. A database left dirty by an interrupted run is reported
// instead of being migrated further; it needs a manual force.
func RunMigrations(db *sql.DB, migrationsPath string) error {
	driver, err := mysql.WithInstance(db, &mysql.Config{MigrationsTable: auditMigrationsTable})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "mysql", driver)
	if err != nil {
		return fmt.Errorf("opening migrations at %s: %w", migrationsPath, err)
	}

	from, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		from = 0
	case err != nil:
		return fmt.Errorf("reading schema version: %w", err)
	case dirty:
		return fmt.Errorf("auth_events schema is dirty at version %d", from)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying audit migrations: %w", err)
	}

	to, _, _ := m.Version()
	slog.Info("audit schema ready",
		slog.Uint64("from_version", uint64(from)),
		slog.Uint64("version", uint64(to)),
	)
	return nil
}
