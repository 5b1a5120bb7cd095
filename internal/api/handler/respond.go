package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/notifyhub/reminder-scheduler/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidText),
		errors.Is(err, domain.ErrInvalidDueTime),
		errors.Is(err, domain.ErrInvalidDestination),
		errors.Is(err, domain.ErrEncoding):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrStorage):
		respondError(w, http.StatusServiceUnavailable, "reminder store unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
