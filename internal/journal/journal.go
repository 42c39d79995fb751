// Package journal persists build history in a local SQLite database.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Types
// =============================================================================

// Entry is one recorded build.
type Entry struct {
	ID          string    `db:"id"`
	StartedAt   time.Time `db:"started_at"`
	Status      string    `db:"status"`
	Handler     string    `db:"handler"`
	ArchivePath string    `db:"archive_path"`
	Digest      string    `db:"digest"`
	DurationMS  int64     `db:"duration_ms"`
	Error       string    `db:"error"`
}

// Journal stores build history.
type Journal struct {
	db *sqlx.DB
}

// =============================================================================
// Lifecycle
// =============================================================================

// Open opens the journal database and runs migrations.
func Open(dsn string) (*Journal, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("Open", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("Open", "", err.Error(), ErrMigrationFailed)
	}

	return &Journal{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// =============================================================================
// Operations
// =============================================================================

// Record inserts a build entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	_, err := j.db.NamedExecContext(ctx, `
		INSERT INTO builds (id, started_at, status, handler, archive_path, digest, duration_ms, error)
		VALUES (:id, :started_at, :status, :handler, :archive_path, :digest, :duration_ms, :error)`, e)
	if err != nil {
		return NewStoreError("Record", e.ID, err.Error(), err)
	}
	return nil
}

// List returns the most recent builds, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []Entry
	err := j.db.SelectContext(ctx, &entries, `
		SELECT id, started_at, status, handler, archive_path, digest, duration_ms, error
		FROM builds ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, NewStoreError("List", "", err.Error(), err)
	}
	return entries, nil
}

// Last returns the most recent build.
func (j *Journal) Last(ctx context.Context) (*Entry, error) {
	var e Entry
	err := j.db.GetContext(ctx, &e, `
		SELECT id, started_at, status, handler, archive_path, digest, duration_ms, error
		FROM builds ORDER BY started_at DESC, id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("Last", "", "no builds recorded", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("Last", "", err.Error(), err)
	}
	return &e, nil
}
