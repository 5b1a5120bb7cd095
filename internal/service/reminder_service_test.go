package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/domain"
	"github.com/notifyhub/reminder-scheduler/internal/repository"
	"github.com/notifyhub/reminder-scheduler/internal/service"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newService() (*service.ReminderService, *repository.MockReminderRepository, *clock.Mock, *int) {
	repo := repository.NewMockReminderRepository()
	clk := clock.NewMock()
	clk.Set(t0)
	created := 0
	svc := service.NewReminderService(repo, clk, zap.NewNop(), func() { created++ })
	return svc, repo, clk, &created
}

func activity() *destination.Activity {
	return &destination.Activity{
		Type:         "message",
		ID:           "act-1",
		ChannelID:    "emulator",
		ServiceURL:   "http://localhost:56150",
		From:         destination.ChannelAccount{ID: "user-1"},
		Recipient:    destination.ChannelAccount{ID: "bot-1"},
		Conversation: destination.ConversationAccount{ID: "conv-1"},
	}
}

// Scenario: a reminder due in 0 minutes is immediately visible to a scan.
func TestReminderService_Create_DueNow(t *testing.T) {
	svc, repo, _, created := newService()
	ctx := context.Background()

	r, err := svc.Create(ctx, service.CreateReminderRequest{DueInMinutes: 0, Text: "x", Activity: activity()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.DueAt.Equal(t0) {
		t.Fatalf("expected due_at=%v, got %v", t0, r.DueAt)
	}
	if r.Sent {
		t.Fatal("new reminder must be unsent")
	}
	if *created != 1 {
		t.Fatalf("expected created hook once, got %d", *created)
	}

	due, err := repo.FetchDue(ctx, t0)
	if err != nil {
		t.Fatalf("fetch due: %v", err)
	}
	if len(due) != 1 || due[0].ID != r.ID || due[0].Text != "x" || due[0].Sent {
		t.Fatalf("expected the new reminder in the scan, got %+v", due)
	}
}

func TestReminderService_Create_DueInFuture(t *testing.T) {
	svc, repo, clk, _ := newService()
	ctx := context.Background()

	r, err := svc.Create(ctx, service.CreateReminderRequest{DueInMinutes: 5, Text: "stand up", Activity: activity()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := t0.Add(5 * time.Minute); !r.DueAt.Equal(want) {
		t.Fatalf("expected due_at=%v, got %v", want, r.DueAt)
	}

	clk.Add(4 * time.Minute)
	due, _ := svc.ListDue(ctx)
	if len(due) != 0 {
		t.Fatalf("expected nothing due after 4m, got %d", len(due))
	}

	clk.Add(time.Minute)
	due, _ = svc.ListDue(ctx)
	if len(due) != 1 {
		t.Fatalf("expected 1 due after 5m, got %d", len(due))
	}

	stored, err := repo.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	ref, err := destination.Decode(stored.Destination)
	if err != nil {
		t.Fatalf("stored destination must decode: %v", err)
	}
	if ref.Conversation.ID != "conv-1" || ref.User.ID != "user-1" || ref.Bot.ID != "bot-1" {
		t.Fatalf("unexpected decoded reference: %+v", ref)
	}
}

func TestReminderService_Create_Validation(t *testing.T) {
	svc, repo, _, created := newService()
	ctx := context.Background()

	noConversation := activity()
	noConversation.Conversation.ID = ""

	tests := []struct {
		name string
		req  service.CreateReminderRequest
		want error
	}{
		{"empty text", service.CreateReminderRequest{Text: "", Activity: activity()}, domain.ErrInvalidText},
		{"blank text", service.CreateReminderRequest{Text: "  \t", Activity: activity()}, domain.ErrInvalidText},
		{"no activity", service.CreateReminderRequest{Text: "x"}, domain.ErrInvalidDestination},
		{"too far ahead", service.CreateReminderRequest{DueInMinutes: service.MaxDueInMinutes + 1, Text: "x", Activity: activity()}, domain.ErrInvalidDueTime},
		{"unroutable activity", service.CreateReminderRequest{Text: "x", Activity: noConversation}, domain.ErrEncoding},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	stats, _ := repo.Stats(ctx, t0)
	if stats.Pending != 0 {
		t.Fatalf("invalid requests must not be stored, got %d pending", stats.Pending)
	}
	if *created != 0 {
		t.Fatalf("created hook fired for invalid requests")
	}
}

func TestReminderService_Create_StorageError(t *testing.T) {
	svc, repo, _, created := newService()
	repo.InsertErr = errors.New("disk full")

	_, err := svc.Create(context.Background(), service.CreateReminderRequest{Text: "x", Activity: activity()})
	if !errors.Is(err, domain.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if *created != 0 {
		t.Fatal("created hook must not fire on failure")
	}
}

func TestReminderService_GetByID_NotFound(t *testing.T) {
	svc, _, _, _ := newService()

	_, err := svc.GetByID(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReminderService_Stats(t *testing.T) {
	svc, repo, _, _ := newService()
	ctx := context.Background()

	a, _ := svc.Create(ctx, service.CreateReminderRequest{Text: "now", Activity: activity()})
	_, _ = svc.Create(ctx, service.CreateReminderRequest{DueInMinutes: 10, Text: "later", Activity: activity()})
	_, _ = svc.Create(ctx, service.CreateReminderRequest{Text: "also now", Activity: activity()})
	if err := repo.MarkSent(ctx, a.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	want := domain.Stats{Pending: 2, Due: 1, Sent: 1}
	if stats != want {
		t.Fatalf("expected %+v, got %+v", want, stats)
	}
}
