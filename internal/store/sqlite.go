// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Opens the database, applies migrations, and scopes work into SQL transactions

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// memoryPath selects a private in-memory database.
const memoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// Ensure sqliteTx implements Tx.
var _ Tx = (*sqliteTx)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// Migrations are applied before the store is returned.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != memoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger,
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// dsn appends the connection pragmas. They are set through the DSN so that
// every pooled connection gets them, not just the first one.
func dsn(path string) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}
	if path != memoryPath {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return path + "?" + strings.Join(pragmas, "&")
}

// Update runs fn inside a write transaction. The transaction commits only
// when fn returns nil; any error rolls every write back.
func (s *SQLiteStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(&sqliteTx{tx: tx, logger: s.logger}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// View runs fn against a read snapshot. Writes made by fn are discarded.
func (s *SQLiteStore) View(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(&sqliteTx{tx: tx, logger: s.logger})
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteTx implements Tx over a single *sql.Tx.
type sqliteTx struct {
	tx     *sql.Tx
	logger *slog.Logger
}

// rowsAffected returns the affected row count of an Exec result.
func rowsAffected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return n, nil
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// nullableNanos converts a stored nullable timestamp.
func nullableNanos(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromNanos(v.Int64)
	return &t
}
