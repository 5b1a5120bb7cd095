package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/notifyhub/reminder-scheduler/internal/api/handler"
	apimw "github.com/notifyhub/reminder-scheduler/internal/api/middleware"
	"github.com/notifyhub/reminder-scheduler/internal/service"
)

// Options carries the optional parts of the HTTP surface.
type Options struct {
	// Location renders due times for callers; nil means UTC.
	Location *time.Location
	// Stream, when set, is mounted at /api/v1/stream for websocket subscribers.
	Stream http.Handler
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(
	svc *service.ReminderService,
	reg prometheus.Gatherer,
	opts Options,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)            // recover panics, return 500
	r.Use(chimw.RealIP)               // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)        // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	rh := handler.NewReminderHandler(svc, opts.Location, logger)
	mh := handler.NewMessagesHandler(svc, opts.Location, logger)
	sh := handler.NewStatsHandler(svc)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Get("/api/messages", hh.MessagesProbe)
	r.Post("/api/messages", mh.Receive)

	r.Route("/api/v1", func(r chi.Router) {
		// /due must be registered before /{id} so chi does not treat the
		// literal string "due" as an ID.
		r.Get("/reminders/due", rh.ListDue)
		r.Post("/reminders", rh.Create)
		r.Get("/reminders/{id}", rh.GetByID)

		r.Get("/stats", sh.GetStats)

		if opts.Stream != nil {
			r.Handle("/stream", opts.Stream)
		}
	})

	return r
}
