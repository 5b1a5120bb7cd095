package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/notifyhub/reminder-scheduler/internal/destination"
	"github.com/notifyhub/reminder-scheduler/internal/domain"
	"github.com/notifyhub/reminder-scheduler/internal/repository"
)

// MaxDueInMinutes bounds how far ahead a reminder can be set (100 years).
const MaxDueInMinutes = 100 * 365 * 24 * 60

// CreateReminderRequest is the creation input. Activity is the live handle
// of the conversation the reminder goes back to; only its encoded form is kept.
type CreateReminderRequest struct {
	DueInMinutes uint                  `json:"due_in_minutes"`
	Text         string                `json:"text"`
	Activity     *destination.Activity `json:"activity"`
}

func (r CreateReminderRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return domain.ErrInvalidText
	}
	if r.DueInMinutes > MaxDueInMinutes {
		return domain.ErrInvalidDueTime
	}
	if r.Activity == nil {
		return domain.ErrInvalidDestination
	}
	return nil
}

// ReminderService is the creation entry point and the read side of the store.
// Delivery belongs to the scheduler; nothing here sends messages.
type ReminderService struct {
	repo      repository.ReminderRepository
	clock     clock.Clock
	logger    *zap.Logger
	onCreated func()
}

// NewReminderService constructs the service. onCreated is optional (nil = no-op).
func NewReminderService(
	repo repository.ReminderRepository,
	clk clock.Clock,
	logger *zap.Logger,
	onCreated func(),
) *ReminderService {
	if clk == nil {
		clk = clock.New()
	}
	if onCreated == nil {
		onCreated = func() {}
	}
	return &ReminderService{repo: repo, clock: clk, logger: logger, onCreated: onCreated}
}

// Create validates the request, encodes the destination, and persists an
// unsent reminder due at now + DueInMinutes.
func (s *ReminderService) Create(ctx context.Context, req CreateReminderRequest) (*domain.Reminder, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	dest, err := destination.Encode(req.Activity)
	if err != nil {
		return nil, err
	}

	dueAt := s.clock.Now().UTC().Add(time.Duration(req.DueInMinutes) * time.Minute)

	id, err := s.repo.Insert(ctx, dueAt, req.Text, dest)
	if err != nil {
		return nil, fmt.Errorf("persist reminder: %w", err)
	}

	s.onCreated()
	s.logger.Info("reminder created",
		zap.Int64("reminder_id", id),
		zap.Time("due_at", dueAt),
		zap.String("conversation_id", req.Activity.Conversation.ID),
	)

	return &domain.Reminder{
		ID:          id,
		DueAt:       dueAt,
		Text:        req.Text,
		Destination: dest,
	}, nil
}

func (s *ReminderService) GetByID(ctx context.Context, id int64) (*domain.Reminder, error) {
	return s.repo.GetByID(ctx, id)
}

// ListDue returns the reminders the next scheduler cycle would pick up.
func (s *ReminderService) ListDue(ctx context.Context) ([]*domain.Reminder, error) {
	return s.repo.FetchDue(ctx, s.clock.Now().UTC())
}

func (s *ReminderService) Stats(ctx context.Context) (domain.Stats, error) {
	return s.repo.Stats(ctx, s.clock.Now().UTC())
}
