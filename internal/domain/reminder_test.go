package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/notifyhub/reminder-scheduler/internal/domain"
)

func TestReminder_IsDue(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		r    domain.Reminder
		want bool
	}{
		{"past and pending", domain.Reminder{DueAt: now.Add(-time.Minute)}, true},
		{"exactly now", domain.Reminder{DueAt: now}, true},
		{"future", domain.Reminder{DueAt: now.Add(time.Nanosecond)}, false},
		{"past but sent", domain.Reminder{DueAt: now.Add(-time.Hour), Sent: true}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.r.IsDue(now))
		})
	}
}
