package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/notifyhub/reminder-scheduler/internal/api/middleware"
	"github.com/notifyhub/reminder-scheduler/internal/domain"
	"github.com/notifyhub/reminder-scheduler/internal/service"
)

// ReminderHandler handles reminder creation and lookup.
type ReminderHandler struct {
	svc    *service.ReminderService
	loc    *time.Location
	logger *zap.Logger
}

// NewReminderHandler builds the handler. loc is the zone due times are
// rendered in for callers; nil means UTC.
func NewReminderHandler(svc *service.ReminderService, loc *time.Location, logger *zap.Logger) *ReminderHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReminderHandler{svc: svc, loc: loc, logger: logger}
}

// CreateReminderResponse echoes the stored reminder plus its due time in
// the configured local zone.
type CreateReminderResponse struct {
	Reminder   *domain.Reminder `json:"reminder"`
	DueAtLocal string           `json:"due_at_local"`
	TimeZone   string           `json:"time_zone"`
}

// Create handles POST /api/v1/reminders
//
// @Summary     Schedule a reminder
// @Tags        reminders
// @Accept      json
// @Produce     json
// @Param       body  body      service.CreateReminderRequest  true  "Reminder payload"
// @Success     201   {object}  CreateReminderResponse
// @Failure     422   {object}  map[string]string
// @Failure     503   {object}  map[string]string
// @Router      /api/v1/reminders [post]
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	rem, err := h.svc.Create(r.Context(), req)
	if err != nil {
		apimw.Logger(r.Context(), h.logger).Warn("create reminder failed", zap.Error(err))
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateReminderResponse{
		Reminder:   rem,
		DueAtLocal: rem.DueAt.In(h.loc).Format(time.RFC3339),
		TimeZone:   h.loc.String(),
	})
}

// GetByID handles GET /api/v1/reminders/{id}
//
// @Summary  Get a reminder by ID
// @Tags     reminders
// @Produce  json
// @Param    id   path      int  true  "Reminder ID"
// @Success  200  {object}  domain.Reminder
// @Failure  404  {object}  map[string]string
// @Router   /api/v1/reminders/{id} [get]
func (h *ReminderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "id must be a positive integer")
		return
	}

	rem, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rem)
}

// ListDue handles GET /api/v1/reminders/due
//
// @Summary  Reminders the next scheduler cycle will pick up
// @Tags     reminders
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/reminders/due [get]
func (h *ReminderHandler) ListDue(w http.ResponseWriter, r *http.Request) {
	due, err := h.svc.ListDue(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if due == nil {
		due = []*domain.Reminder{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  due,
		"total": len(due),
	})
}
