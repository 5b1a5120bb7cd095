package repository_test

import (
	"context"
	"math/rand"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/reminder-scheduler/internal/config"
	"github.com/notifyhub/reminder-scheduler/internal/domain"
	"github.com/notifyhub/reminder-scheduler/internal/repository"
)

var base = time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)

// at returns base shifted by n seconds.
func at(n int) time.Time { return base.Add(time.Duration(n) * time.Second) }

var dest = []byte(`{"conversation":{"id":"c-1"},"channelId":"msteams","serviceUrl":"https://smba.example"}`)

func newSQLiteRepo(t *testing.T) repository.ReminderRepository {
	t.Helper()
	cfg := &config.Config{
		StoreLocation:     filepath.Join(t.TempDir(), "reminders.db"),
		SQLiteBusyTimeout: 5 * time.Second,
	}
	repo, closeFn, err := repository.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(closeFn)
	return repo
}

func newMockRepo(t *testing.T) repository.ReminderRepository {
	return repository.NewMockReminderRepository()
}

// implementations runs every contract test against the real SQLite store and
// the in-memory mock, so the mock used by scheduler tests cannot drift.
var implementations = map[string]func(t *testing.T) repository.ReminderRepository{
	"sqlite": newSQLiteRepo,
	"mock":   newMockRepo,
}

func forEachRepo(t *testing.T, fn func(t *testing.T, repo repository.ReminderRepository)) {
	for name, newRepo := range implementations {
		t.Run(name, func(t *testing.T) {
			fn(t, newRepo(t))
		})
	}
}

func ids(rs []*domain.Reminder) []int64 {
	out := make([]int64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestReminderRepository_InsertedReminderIsDueAtItsOwnTime(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		ctx := context.Background()

		id, err := repo.Insert(ctx, at(100), "x", dest)
		require.NoError(t, err)

		due, err := repo.FetchDue(ctx, at(100))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, id, due[0].ID)
		assert.True(t, due[0].DueAt.Equal(at(100)), "due_at round-trips: got %s", due[0].DueAt)
		assert.False(t, due[0].Sent)
		assert.Equal(t, "x", due[0].Text)
		assert.Equal(t, dest, due[0].Destination)
	})
}

func TestReminderRepository_OnlyElapsedReminders(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		ctx := context.Background()

		early, err := repo.Insert(ctx, at(50), "early", dest)
		require.NoError(t, err)
		_, err = repo.Insert(ctx, at(60), "late", dest)
		require.NoError(t, err)

		due, err := repo.FetchDue(ctx, at(55))
		require.NoError(t, err)
		assert.Equal(t, []int64{early}, ids(due))
	})
}

func TestReminderRepository_EmptyScan(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		due, err := repo.FetchDue(context.Background(), at(0))
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}

func TestReminderRepository_OrderByDueThenID(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		ctx := context.Background()

		c, _ := repo.Insert(ctx, at(30), "c", dest)
		a1, _ := repo.Insert(ctx, at(10), "a1", dest)
		b, _ := repo.Insert(ctx, at(20), "b", dest)
		a2, _ := repo.Insert(ctx, at(10), "a2", dest)

		due, err := repo.FetchDue(ctx, at(30))
		require.NoError(t, err)
		assert.Equal(t, []int64{a1, a2, b, c}, ids(due))
	})
}

func TestReminderRepository_MarkSentIsIdempotent(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		ctx := context.Background()

		id, err := repo.Insert(ctx, at(0), "once", dest)
		require.NoError(t, err)

		require.NoError(t, repo.MarkSent(ctx, id))
		require.NoError(t, repo.MarkSent(ctx, id))
		require.NoError(t, repo.MarkSent(ctx, 9999), "unknown id is a no-op")

		got, err := repo.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Sent)

		// A sent reminder never reappears, however far the clock moves.
		for _, now := range []time.Time{at(0), at(1), at(86400 * 365)} {
			due, err := repo.FetchDue(ctx, now)
			require.NoError(t, err)
			assert.Empty(t, due)
		}
	})
}

func TestReminderRepository_UnsentReminderStaysVisible(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		ctx := context.Background()

		id, err := repo.Insert(ctx, at(0), "retry me", dest)
		require.NoError(t, err)

		for _, now := range []time.Time{at(0), at(10), at(20)} {
			due, err := repo.FetchDue(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, []int64{id}, ids(due))
		}
	})
}

// TestReminderRepository_VisibilityProperty checks, over a random population,
// that a reminder is returned exactly when it is unsent and due, in order.
func TestReminderRepository_VisibilityProperty(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		ctx := context.Background()
		rng := rand.New(rand.NewSource(42))

		type row struct {
			id    int64
			dueAt time.Time
			sent  bool
		}
		var rows []row
		for i := 0; i < 60; i++ {
			dueAt := at(rng.Intn(100))
			id, err := repo.Insert(ctx, dueAt, "r", dest)
			require.NoError(t, err)
			r := row{id: id, dueAt: dueAt}
			if rng.Intn(3) == 0 {
				require.NoError(t, repo.MarkSent(ctx, id))
				r.sent = true
			}
			rows = append(rows, r)
		}

		for _, now := range []time.Time{at(-1), at(0), at(25), at(50), at(99), at(1000)} {
			var want []row
			for _, r := range rows {
				if !r.sent && !r.dueAt.After(now) {
					want = append(want, r)
				}
			}
			sort.Slice(want, func(i, j int) bool {
				if !want[i].dueAt.Equal(want[j].dueAt) {
					return want[i].dueAt.Before(want[j].dueAt)
				}
				return want[i].id < want[j].id
			})
			wantIDs := make([]int64, len(want))
			for i, r := range want {
				wantIDs[i] = r.id
			}

			due, err := repo.FetchDue(ctx, now)
			require.NoError(t, err)
			assert.Equal(t, wantIDs, ids(due), "now=%s", now)
		}
	})
}

func TestReminderRepository_ConcurrentInsertsGetUniqueIDs(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		ctx := context.Background()

		const writers = 8
		const perWriter = 10

		var (
			mu   sync.Mutex
			seen = make(map[int64]bool)
			wg   sync.WaitGroup
		)
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWriter; i++ {
					id, err := repo.Insert(ctx, at(i), "concurrent", dest)
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					assert.False(t, seen[id], "duplicate id %d", id)
					seen[id] = true
					mu.Unlock()
				}
			}()
		}

		// Scans run alongside the writers and must never fail.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 20; i++ {
				_, err := repo.FetchDue(ctx, at(perWriter))
				assert.NoError(t, err)
			}
		}()

		wg.Wait()
		<-done
		assert.Len(t, seen, writers*perWriter)
	})
}

func TestReminderRepository_IDsAreMonotonic(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		ctx := context.Background()
		var last int64
		for i := 0; i < 5; i++ {
			id, err := repo.Insert(ctx, at(0), "m", dest)
			require.NoError(t, err)
			assert.Greater(t, id, last)
			last = id
		}
	})
}

func TestReminderRepository_GetByID_NotFound(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		_, err := repo.GetByID(context.Background(), 12345)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestReminderRepository_Stats(t *testing.T) {
	forEachRepo(t, func(t *testing.T, repo repository.ReminderRepository) {
		ctx := context.Background()

		sent, _ := repo.Insert(ctx, at(0), "sent", dest)
		_, _ = repo.Insert(ctx, at(5), "due", dest)
		_, _ = repo.Insert(ctx, at(500), "future", dest)
		require.NoError(t, repo.MarkSent(ctx, sent))

		s, err := repo.Stats(ctx, at(10))
		require.NoError(t, err)
		assert.Equal(t, domain.Stats{Pending: 2, Due: 1, Sent: 1}, s)
	})
}

func TestMockReminderRepository_ErrorOverridesAreStorageErrors(t *testing.T) {
	repo := repository.NewMockReminderRepository()
	repo.FetchDueErr = assert.AnError

	_, err := repo.FetchDue(context.Background(), at(0))
	assert.ErrorIs(t, err, domain.ErrStorage)
	assert.ErrorIs(t, err, assert.AnError)
}
