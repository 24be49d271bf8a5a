// Package sqlite opens SQLite databases through sqlx and applies their migrations.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
)

const busyTimeoutMillis = 5000

// IsUniqueViolationError reports whether err is a SQLite UNIQUE constraint failure.
func IsUniqueViolationError(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// New opens the database file at path, creating parent directories as needed.
// The pool is limited to a single connection so SQLite sees one writer at a time.
func New(ctx context.Context, path string) (*sqlx.DB, error) {
	const op = "sqlite.New"

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%s: failed to create database directory: %w", op, err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", path, busyTimeoutMillis)

	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	db.SetMaxOpenConns(1)

	return db, nil
}

// RunMigrations applies the migrations found in dir of fsys to the database file at path.
func RunMigrations(fsys fs.FS, dir, path string) error {
	const op = "sqlite.RunMigrations"

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%s: failed to resolve database path: %w", op, err)
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("%s: failed to open migrations source: %w", op, err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, "sqlite3://"+abs)
	if err != nil {
		return fmt.Errorf("%s: failed to initialize migrations: %w", op, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return nil
}
