package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ordersync/backend/internal/domain/integration"
	"github.com/ordersync/backend/internal/infrastructure/scheduler"
	"github.com/ordersync/backend/internal/interfaces/http/handler"
	"github.com/ordersync/backend/internal/interfaces/http/middleware"
	"github.com/ordersync/backend/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

// serve runs the scheduler, its interval trigger and the ops server until
// ctx is cancelled.
func serve(ctx context.Context, a *app) error {
	cfg, log := a.cfg, a.log

	sched, err := scheduler.New(scheduler.Config{
		JobTimeout:  cfg.Scheduler.JobTimeout,
		QueueSize:   scheduler.DefaultConfig().QueueSize,
		HistorySize: cfg.Scheduler.HistorySize,
	}, a.runner, log)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sched.Stop(context.Background()); err != nil {
			log.Error("Error stopping scheduler", zap.Error(err))
		}
	}()

	if cfg.Scheduler.Enabled {
		trigger := scheduler.NewIntervalTrigger(map[integration.SyncPass]time.Duration{
			integration.SyncPassInbound:  cfg.Scheduler.InboundInterval,
			integration.SyncPassOutbound: cfg.Scheduler.OutboundInterval,
			integration.SyncPassSweep:    cfg.Scheduler.SweepInterval,
		}, sched, log)
		if err := trigger.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := trigger.Stop(context.Background()); err != nil {
				log.Error("Error stopping interval trigger", zap.Error(err))
			}
		}()
		log.Info("Interval trigger started",
			zap.Duration("inbound", cfg.Scheduler.InboundInterval),
			zap.Duration("outbound", cfg.Scheduler.OutboundInterval),
			zap.Duration("sweep", cfg.Scheduler.SweepInterval),
		)
	}

	httpMetrics, err := middleware.HTTPMetrics(a.meter)
	if err != nil {
		return err
	}
	mode := gin.DebugMode
	if cfg.App.Env == "production" {
		mode = gin.ReleaseMode
	}
	engine := router.NewEngine(router.EngineConfig{
		Mode: mode,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     a.tracer.IsEnabled(),
		},
		Metrics: httpMetrics,
	}, log)

	health := handler.NewHealthHandler(a.checks, 5*time.Second, log)
	engine.GET("/healthz", health.Healthz)
	router.NewRouter(engine).
		Register(handler.NewJobHandler(sched, log)).
		Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Server exited gracefully")
	return nil
}
