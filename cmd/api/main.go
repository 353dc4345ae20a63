package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/therapysync/schedule-api/internal/config"
	"github.com/therapysync/schedule-api/internal/email"
	certperiodHandler "github.com/therapysync/schedule-api/internal/handler/certperiod"
	"github.com/therapysync/schedule-api/internal/handler/health"
	prometheusHandler "github.com/therapysync/schedule-api/internal/handler/prometheus"
	staffHandler "github.com/therapysync/schedule-api/internal/handler/staff"
	visitHandler "github.com/therapysync/schedule-api/internal/handler/visit"
	"github.com/therapysync/schedule-api/internal/middleware"
	"github.com/therapysync/schedule-api/internal/repository/postgres"
	"github.com/therapysync/schedule-api/internal/router"
	auditService "github.com/therapysync/schedule-api/internal/service/audit"
	certperiodService "github.com/therapysync/schedule-api/internal/service/certperiod"
	eventService "github.com/therapysync/schedule-api/internal/service/event"
	lifecycleService "github.com/therapysync/schedule-api/internal/service/lifecycle"
	noteService "github.com/therapysync/schedule-api/internal/service/note"
	quotaService "github.com/therapysync/schedule-api/internal/service/quota"
	schedulerService "github.com/therapysync/schedule-api/internal/service/scheduler"
	staffService "github.com/therapysync/schedule-api/internal/service/staff"
	syncService "github.com/therapysync/schedule-api/internal/service/sync"
	"github.com/therapysync/schedule-api/pkg/logger"
	"github.com/therapysync/schedule-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("therapysync", "schedule")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	visitRepo := postgres.NewVisitRepository(db)
	certRepo := postgres.NewCertPeriodRepository(db)
	staffRepo := postgres.NewStaffRepository(db)
	patientRepo := postgres.NewPatientRepository(db)
	noteRepo := postgres.NewNoteRepository(db)
	limitRepo := postgres.NewWeeklyLimitRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Services
	auditor := auditService.NewService(auditRepo)
	eventSvc := eventService.NewService(outboxRepo)
	broadcaster := syncService.NewBroadcaster(visitRepo, limitRepo, eventSvc, appMetrics, appLogger)
	resolver := certperiodService.NewResolver(certRepo, appLogger)
	quota := quotaService.NewCalculator(certRepo, patientRepo, limitRepo, visitRepo, staffRepo, broadcaster, appMetrics, appLogger)
	scheduler := schedulerService.NewService(visitRepo, staffRepo, certRepo, quota, broadcaster, auditor, appMetrics, appLogger)
	notes := noteService.NewService(noteRepo, visitRepo, staffRepo, broadcaster, auditor, appLogger)
	staffSvc := staffService.NewService(staffRepo)

	var emailer email.Service = email.NoopService{}
	if cfg.SMTP.Host != "" {
		emailer = email.NewService(cfg.SMTP, appLogger)
	}
	machine := lifecycleService.NewMachine(visitRepo, staffRepo, notes, emailer, cfg.SMTP.MDNotify, broadcaster, auditor, appMetrics, appLogger)

	// Handlers
	visitH := visitHandler.NewHandler(scheduler, machine, notes, resolver)
	certPeriodH := certperiodHandler.NewHandler(resolver, quota)
	staffH := staffHandler.NewHandler(staffSvc)
	healthH := health.NewHandler(db)
	promH := prometheusHandler.New()

	r := router.NewRouter(visitH, certPeriodH, staffH, healthH, promH, router.Config{
		RateLimitEnabled: cfg.RateLimit.Enabled,
		RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:        cfg.RateLimit.Burst,
		Timeout:          time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		CORSConfig:       middleware.DefaultCORSConfig(),
		MetricsEnabled:   cfg.Monitoring.PrometheusEnabled,
		MetricsPath:      cfg.Monitoring.MetricsPath,
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("Server exited")
}
