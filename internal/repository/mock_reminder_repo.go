package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/notifyhub/reminder-scheduler/internal/domain"
)

// MockReminderRepository is a hand-written, in-memory implementation of
// ReminderRepository used in unit tests. No mock-generation library needed.
type MockReminderRepository struct {
	mu        sync.RWMutex
	reminders map[int64]*domain.Reminder
	nextID    int64

	// MarkSentCalls counts MarkSent invocations per id, including no-ops.
	MarkSentCalls map[int64]int

	// Optional error overrides, set in tests to simulate failure paths.
	InsertErr   error
	FetchDueErr error
	MarkSentErr error
}

func NewMockReminderRepository() *MockReminderRepository {
	return &MockReminderRepository{
		reminders:     make(map[int64]*domain.Reminder),
		MarkSentCalls: make(map[int64]int),
	}
}

func (m *MockReminderRepository) Insert(_ context.Context, dueAt time.Time, text string, destination []byte) (int64, error) {
	if m.InsertErr != nil {
		return 0, domain.NewStorageError("insert reminder", m.InsertErr)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.reminders[m.nextID] = &domain.Reminder{
		ID:          m.nextID,
		DueAt:       dueAt.UTC(),
		Text:        text,
		Destination: append([]byte(nil), destination...),
	}
	return m.nextID, nil
}

func (m *MockReminderRepository) FetchDue(_ context.Context, now time.Time) ([]*domain.Reminder, error) {
	if m.FetchDueErr != nil {
		return nil, domain.NewStorageError("fetch due reminders", m.FetchDueErr)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Reminder
	for _, r := range m.reminders {
		if r.IsDue(now) {
			clone := *r
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].DueAt.Equal(result[j].DueAt) {
			return result[i].DueAt.Before(result[j].DueAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *MockReminderRepository) MarkSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MarkSentCalls[id]++
	if m.MarkSentErr != nil {
		return domain.NewStorageError("mark reminder sent", m.MarkSentErr)
	}
	if r, ok := m.reminders[id]; ok {
		r.Sent = true
	}
	return nil
}

func (m *MockReminderRepository) GetByID(_ context.Context, id int64) (*domain.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reminders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *r
	return &clone, nil
}

func (m *MockReminderRepository) Stats(_ context.Context, now time.Time) (domain.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var s domain.Stats
	for _, r := range m.reminders {
		switch {
		case r.Sent:
			s.Sent++
		case r.IsDue(now):
			s.Pending++
			s.Due++
		default:
			s.Pending++
		}
	}
	return s, nil
}

// compile-time checks that every implementation satisfies the interface
var (
	_ ReminderRepository = (*MockReminderRepository)(nil)
	_ ReminderRepository = (*sqliteReminderRepository)(nil)
	_ ReminderRepository = (*pgReminderRepository)(nil)
)
