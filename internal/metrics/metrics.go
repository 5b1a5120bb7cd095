package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/notifyhub/reminder-scheduler/internal/scheduler"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	RemindersCreated prometheus.Counter
	RemindersSent    *prometheus.CounterVec
	DispatchFailures *prometheus.CounterVec
	Cycles           prometheus.Counter
	CyclesSkipped    prometheus.Counter
	CycleDuration    prometheus.Histogram
	RemindersDue     prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RemindersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reminders_created_total",
			Help: "Total number of reminders accepted and persisted.",
		}),

		RemindersSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total number of reminders delivered, by host convention.",
		}, []string{"convention"}),

		DispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reminder_dispatch_failures_total",
			Help: "Per-reminder delivery failures; the reminder stays pending and is retried.",
		}, []string{"reason"}),

		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_cycles_total",
			Help: "Total number of scheduler cycles executed.",
		}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_cycles_skipped_total",
			Help: "Ticks dropped because the previous cycle was still running.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scheduler_cycle_seconds",
			Help:    "Wall time of one scan-and-dispatch cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		RemindersDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reminders_due",
			Help: "Number of reminders returned by the most recent scan.",
		}),
	}

	reg.MustRegister(
		m.RemindersCreated,
		m.RemindersSent,
		m.DispatchFailures,
		m.Cycles,
		m.CyclesSkipped,
		m.CycleDuration,
		m.RemindersDue,
	)

	return m
}

// SchedulerHooks returns the callbacks the scheduler reports through.
// Centralises the prometheus observation calls so the scheduler stays import-free.
func (m *Metrics) SchedulerHooks() scheduler.Hooks {
	return scheduler.Hooks{
		OnCycle: func(elapsed time.Duration, due int) {
			m.Cycles.Inc()
			m.CycleDuration.Observe(elapsed.Seconds())
			m.RemindersDue.Set(float64(due))
		},
		OnSkipped: m.CyclesSkipped.Inc,
		OnSent: func(convention string) {
			m.RemindersSent.WithLabelValues(convention).Inc()
		},
		OnFailed: func(reason string) {
			m.DispatchFailures.WithLabelValues(reason).Inc()
		},
	}
}

// OnReminderCreated is the creation hook for service.NewReminderService.
func (m *Metrics) OnReminderCreated() {
	m.RemindersCreated.Inc()
}
