package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notifyhub/reminder-scheduler/internal/domain"
)

// dueAtLayout is fixed-width ISO-8601 in UTC, so lexical order on the
// due_at_utc TEXT column equals chronological order.
const dueAtLayout = "2006-01-02T15:04:05.000000000Z"

type sqliteReminderRepository struct {
	db *sql.DB
}

// NewSQLiteReminderRepository returns a ReminderRepository backed by a SQLite file.
func NewSQLiteReminderRepository(db *sql.DB) ReminderRepository {
	return &sqliteReminderRepository{db: db}
}

func (r *sqliteReminderRepository) Insert(ctx context.Context, dueAt time.Time, text string, destination []byte) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO reminders (due_at_utc, text, destination, sent) VALUES (?, ?, ?, 0)`,
		formatDueAt(dueAt), text, destination)
	if err != nil {
		return 0, domain.NewStorageError("insert reminder", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.NewStorageError("insert reminder", err)
	}
	return id, nil
}

func (r *sqliteReminderRepository) FetchDue(ctx context.Context, now time.Time) ([]*domain.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, due_at_utc, text, destination, sent
		FROM reminders
		WHERE sent = 0 AND due_at_utc <= ?
		ORDER BY due_at_utc ASC, id ASC`, formatDueAt(now))
	if err != nil {
		return nil, domain.NewStorageError("fetch due reminders", err)
	}
	defer rows.Close()

	var result []*domain.Reminder
	for rows.Next() {
		rem, err := scanSQLiteReminder(rows)
		if err != nil {
			return nil, domain.NewStorageError("fetch due reminders", err)
		}
		result = append(result, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewStorageError("fetch due reminders", err)
	}
	return result, nil
}

func (r *sqliteReminderRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE reminders SET sent = 1 WHERE id = ? AND sent = 0`, id)
	return domain.NewStorageError("mark reminder sent", err)
}

func (r *sqliteReminderRepository) GetByID(ctx context.Context, id int64) (*domain.Reminder, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, due_at_utc, text, destination, sent
		FROM reminders WHERE id = ?`, id)

	rem, err := scanSQLiteReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get reminder", err)
	}
	return rem, nil
}

func (r *sqliteReminderRepository) Stats(ctx context.Context, now time.Time) (domain.Stats, error) {
	var s domain.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN sent = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sent = 0 AND due_at_utc <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sent = 1 THEN 1 ELSE 0 END), 0)
		FROM reminders`, formatDueAt(now)).Scan(&s.Pending, &s.Due, &s.Sent)
	if err != nil {
		return domain.Stats{}, domain.NewStorageError("reminder stats", err)
	}
	return s, nil
}

// ---- helpers ----

func formatDueAt(t time.Time) string {
	return t.UTC().Format(dueAtLayout)
}

// scanSQLiteReminder reads a single reminder from a *sql.Row or *sql.Rows.
func scanSQLiteReminder(row interface{ Scan(...any) error }) (*domain.Reminder, error) {
	var (
		rem   domain.Reminder
		dueAt string
		sent  int
	)
	if err := row.Scan(&rem.ID, &dueAt, &rem.Text, &rem.Destination, &sent); err != nil {
		return nil, err
	}
	t, err := time.Parse(dueAtLayout, dueAt)
	if err != nil {
		return nil, fmt.Errorf("parse due_at_utc %q: %w", dueAt, err)
	}
	rem.DueAt = t
	rem.Sent = sent != 0
	return &rem, nil
}
