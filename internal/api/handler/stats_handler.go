package handler

import (
	"net/http"

	"github.com/notifyhub/reminder-scheduler/internal/service"
)

// StatsHandler serves a human-readable JSON snapshot of the reminder store.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type StatsHandler struct {
	svc *service.ReminderService
}

func NewStatsHandler(svc *service.ReminderService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// GetStats handles GET /api/v1/stats
//
// @Summary  Pending, due and sent reminder counts
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  domain.Stats
// @Router   /api/v1/stats [get]
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
