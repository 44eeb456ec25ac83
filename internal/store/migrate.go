// ABOUTME: Embedded schema migrations applied with golang-migrate at store startup
// ABOUTME: File databases migrate over a separate connection; :memory: reuses the store's handle

package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations brings the schema up to the latest embedded version.
func (s *SQLiteStore) runMigrations() error {
	if s.path == memoryPath {
		// The migrate driver closes its handle on Close, and a second
		// connection would see a different in-memory database, so the
		// instance is left for the collector instead.
		m, err := newMigrator(s.db)
		if err != nil {
			return err
		}
		return up(m)
	}

	migrateDB, err := sql.Open("sqlite", dsn(s.path))
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	m, err := newMigrator(migrateDB)
	if err != nil {
		return err
	}
	defer m.Close()

	return up(m)
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	return m, nil
}

func up(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
