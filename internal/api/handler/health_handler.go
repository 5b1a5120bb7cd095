package handler

import "net/http"

// HealthHandler serves the liveness probe endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

// Health handles GET /health
//
// @Summary  Liveness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MessagesProbe handles GET /api/messages, which channel registrations
// ping to check the messaging endpoint is reachable.
func (h *HealthHandler) MessagesProbe(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
