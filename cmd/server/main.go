package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/reminder-scheduler/internal/api"
	"github.com/notifyhub/reminder-scheduler/internal/config"
	"github.com/notifyhub/reminder-scheduler/internal/connector"
	"github.com/notifyhub/reminder-scheduler/internal/dispatch"
	"github.com/notifyhub/reminder-scheduler/internal/hub"
	"github.com/notifyhub/reminder-scheduler/internal/metrics"
	"github.com/notifyhub/reminder-scheduler/internal/repository"
	"github.com/notifyhub/reminder-scheduler/internal/scheduler"
	"github.com/notifyhub/reminder-scheduler/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	loc, err := time.LoadLocation(cfg.LocalTZ)
	if err != nil {
		logger.Warn("unknown LOCAL_TZ, using UTC", zap.String("tz", cfg.LocalTZ), zap.Error(err))
		loc = time.UTC
	}

	// ---- store ----
	ctx := context.Background()
	repo, closeStore, err := repository.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open reminder store", zap.Error(err))
	}
	defer closeStore()
	logger.Info("reminder store ready", zap.Bool("postgres", cfg.IsPostgres()))

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	clk := clock.New()
	svc := service.NewReminderService(repo, clk, logger, m.OnReminderCreated)

	// ---- delivery host ----
	var (
		host   any
		stream *hub.Hub
	)
	switch cfg.Transport {
	case config.TransportWebsocket:
		stream = hub.New(logger)
		host = stream
	case config.TransportConnector:
		host = connector.New(connector.Config{
			AppID:          cfg.AppID,
			AppPassword:    cfg.AppPassword,
			TenantID:       cfg.TenantID,
			Timeout:        cfg.ConnectorTimeout,
			RatePerChannel: cfg.RateLimit,
		}, logger)
	default:
		logger.Fatal("unknown TRANSPORT", zap.String("transport", cfg.Transport))
	}

	adapter, err := dispatch.NewAdapter(host, cfg.AppID, logger)
	if err != nil {
		logger.Fatal("delivery host is unusable", zap.Error(err))
	}
	logger.Info("delivery host ready",
		zap.String("transport", cfg.Transport),
		zap.Strings("conventions", adapter.Conventions()),
	)

	// ---- scheduler ----
	sched := scheduler.New(repo, adapter, scheduler.Options{
		Interval: cfg.TickInterval,
		Prefix:   cfg.ReminderPrefix,
		Clock:    clk,
		Hooks:    m.SchedulerHooks(),
	}, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}

	// ---- HTTP server ----
	opts := api.Options{Location: loc}
	if stream != nil {
		opts.Stream = stream
	}
	router := api.NewRouter(svc, reg, opts, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop future scheduler ticks. An in-flight cycle is not awaited.
	sched.Stop()

	// 2. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 3. Disconnect websocket subscribers, which Shutdown does not track.
	if stream != nil {
		stream.Close()
	}

	logger.Info("server stopped cleanly")
}
