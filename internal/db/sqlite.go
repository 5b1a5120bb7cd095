package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrationsFS embed.FS

// SQLiteDSN builds a modernc.org/sqlite connection string for file.
// WAL lets the scheduler scan while request handlers insert; immediate
// transactions plus a busy timeout serialise concurrent writers instead of
// failing them with SQLITE_BUSY.
func SQLiteDSN(file string, busyTimeout time.Duration) string {
	qs := url.Values{
		"_txlock": []string{"immediate"},
		"_pragma": []string{
			"journal_mode(WAL)",
			fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()),
		},
	}
	return "file:" + file + "?" + qs.Encode()
}

// OpenSQLite opens the reminders database file and verifies it is usable.
func OpenSQLite(ctx context.Context, file string, busyTimeout time.Duration) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", SQLiteDSN(file, busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", file, err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", file, err)
	}
	return conn, nil
}

// MigrateSQLite applies the embedded SQLite migrations to file, creating the
// file if needed. Safe to call on every start.
func MigrateSQLite(ctx context.Context, file string, busyTimeout time.Duration) error {
	conn, err := OpenSQLite(ctx, file, busyTimeout)
	if err != nil {
		return err
	}

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		conn.Close()
		return fmt.Errorf("create sqlite migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/sqlite")
	if err != nil {
		conn.Close()
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		conn.Close()
		return fmt.Errorf("create migrator: %w", err)
	}
	// Closes both the source and conn.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
