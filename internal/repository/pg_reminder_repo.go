package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/reminder-scheduler/internal/domain"
)

type pgReminderRepository struct {
	pool *pgxpool.Pool
}

// NewPgReminderRepository returns a ReminderRepository backed by PostgreSQL.
func NewPgReminderRepository(pool *pgxpool.Pool) ReminderRepository {
	return &pgReminderRepository{pool: pool}
}

func (r *pgReminderRepository) Insert(ctx context.Context, dueAt time.Time, text string, destination []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO reminders (due_at_utc, text, destination, sent)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id`,
		dueAt.UTC(), text, destination,
	).Scan(&id)
	if err != nil {
		return 0, domain.NewStorageError("insert reminder", err)
	}
	return id, nil
}

func (r *pgReminderRepository) FetchDue(ctx context.Context, now time.Time) ([]*domain.Reminder, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, due_at_utc, text, destination, sent
		FROM reminders
		WHERE NOT sent AND due_at_utc <= $1
		ORDER BY due_at_utc ASC, id ASC`, now.UTC())
	if err != nil {
		return nil, domain.NewStorageError("fetch due reminders", err)
	}
	defer rows.Close()

	var result []*domain.Reminder
	for rows.Next() {
		rem, err := scanPgReminder(rows)
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

func (r *pgReminderRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE reminders SET sent = TRUE WHERE id = $1 AND NOT sent`, id)
	return domain.NewStorageError("mark reminder sent", err)
}

func (r *pgReminderRepository) GetByID(ctx context.Context, id int64) (*domain.Reminder, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, due_at_utc, text, destination, sent
		FROM reminders WHERE id = $1`, id)

	rem, err := scanPgReminder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.NewStorageError("get reminder", err)
	}
	return rem, nil
}

func (r *pgReminderRepository) Stats(ctx context.Context, now time.Time) (domain.Stats, error) {
	var s domain.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE NOT sent),
			COUNT(*) FILTER (WHERE NOT sent AND due_at_utc <= $1),
			COUNT(*) FILTER (WHERE sent)
		FROM reminders`, now.UTC()).Scan(&s.Pending, &s.Due, &s.Sent)
	if err != nil {
		return domain.Stats{}, domain.NewStorageError("reminder stats", err)
	}
	return s, nil
}

// scanPgReminder reads a single reminder row from any pgx row type.
func scanPgReminder(row pgx.Row) (*domain.Reminder, error) {
	var rem domain.Reminder
	if err := row.Scan(&rem.ID, &rem.DueAt, &rem.Text, &rem.Destination, &rem.Sent); err != nil {
		return nil, err
	}
	rem.DueAt = rem.DueAt.UTC()
	return &rem, nil
}
