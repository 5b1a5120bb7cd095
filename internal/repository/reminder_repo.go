package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/notifyhub/reminder-scheduler/internal/config"
	"github.com/notifyhub/reminder-scheduler/internal/db"
	"github.com/notifyhub/reminder-scheduler/internal/domain"
)

// ReminderRepository is the durable reminder store.
//
// Every method is atomic on its own; callers never need a transaction that
// spans two calls. Storage failures come back as *domain.StorageError.
// The SQLite implementation is in sqlite_reminder_repo.go, the pgx one in
// pg_reminder_repo.go. Tests use a hand-written mock (mock_reminder_repo.go).
type ReminderRepository interface {
	// Insert persists an unsent reminder and returns its new id.
	Insert(ctx context.Context, dueAt time.Time, text string, destination []byte) (int64, error)

	// FetchDue returns every unsent reminder with due_at <= now, ordered by
	// due_at then id. An empty result is not an error.
	FetchDue(ctx context.Context, now time.Time) ([]*domain.Reminder, error)

	// MarkSent flags a reminder as delivered. Unknown or already-sent ids are a no-op.
	MarkSent(ctx context.Context, id int64) error

	GetByID(ctx context.Context, id int64) (*domain.Reminder, error)
	Stats(ctx context.Context, now time.Time) (domain.Stats, error)
}

// Open selects the store implementation from cfg.StoreLocation, creates the
// schema if it is missing, and returns the repository with its close func.
func Open(ctx context.Context, cfg *config.Config) (ReminderRepository, func(), error) {
	if cfg.IsPostgres() {
		pool, err := db.Connect(ctx, cfg.StoreLocation, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.MigratePostgres(cfg.StoreLocation); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return NewPgReminderRepository(pool), pool.Close, nil
	}

	if err := db.MigrateSQLite(ctx, cfg.StoreLocation, cfg.SQLiteBusyTimeout); err != nil {
		return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	conn, err := db.OpenSQLite(ctx, cfg.StoreLocation, cfg.SQLiteBusyTimeout)
	if err != nil {
		return nil, nil, err
	}
	return NewSQLiteReminderRepository(conn), func() { _ = conn.Close() }, nil
}
