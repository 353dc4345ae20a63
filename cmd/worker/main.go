package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/therapysync/schedule-api/internal/repository/postgres"
	eventService "github.com/therapysync/schedule-api/internal/service/event"
	internalworker "github.com/therapysync/schedule-api/internal/worker"
	"github.com/therapysync/schedule-api/pkg/logger"
	"github.com/therapysync/schedule-api/pkg/messaging/redis"
	"github.com/therapysync/schedule-api/pkg/metrics"
	"github.com/therapysync/schedule-api/pkg/worker"
)

// workerConfig is read from the environment only; the worker ships without
// a config file so it can run as a bare container sidecar.
type workerConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL    string `envconfig:"REDIS_URL" required:"true"`

	BatchSize     int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	PollInterval  time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s"`
	RetryAttempts int           `envconfig:"OUTBOX_RETRY_ATTEMPTS" default:"3"`
	RetryDelay    time.Duration `envconfig:"OUTBOX_RETRY_DELAY" default:"5s"`

	RedisMaxRetries   int           `envconfig:"REDIS_MAX_RETRIES" default:"3"`
	RedisRetryBackoff time.Duration `envconfig:"REDIS_RETRY_BACKOFF" default:"500ms"`
	RedisPoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	RedisMinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`

	AuditRetentionDays int           `envconfig:"AUDIT_RETENTION_DAYS" default:"90"`
	CleanupInterval    time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`
	CertSweepInterval  time.Duration `envconfig:"CERT_SWEEP_INTERVAL" default:"1h"`
	EventRetention     time.Duration `envconfig:"EVENT_RETENTION" default:"24h"`

	HealthPort string `envconfig:"HEALTH_PORT" default:"8081"`
}

func main() {
	var cfg workerConfig
	if err := envconfig.Process("worker", &cfg); err != nil {
		log.Fatal().Err(err).Msg("failed to load worker configuration")
	}

	appLogger := logger.NewLogger(nil)
	appMetrics := metrics.NewMetrics("therapysync", "schedule_worker")

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(redis.Config{
		URL:          cfg.RedisURL,
		MaxRetries:   cfg.RedisMaxRetries,
		RetryBackoff: cfg.RedisRetryBackoff,
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	}, &log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	certRepo := postgres.NewCertPeriodRepository(db)
	eventSvc := eventService.NewService(outboxRepo)

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.BatchSize,
		PollInterval:  cfg.PollInterval,
		RetryAttempts: cfg.RetryAttempts,
		RetryDelay:    cfg.RetryDelay,
	}, appLogger, appMetrics)

	auditCleanup := internalworker.NewAuditCleanupWorker(auditRepo, cfg.AuditRetentionDays, cfg.CleanupInterval, appLogger)
	certSweep := internalworker.NewCertSweepWorker(certRepo, cfg.CertSweepInterval, appLogger)

	setupHealthCheck(cfg.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLogger.Info("Shutting down worker")
		cancel()
	}()

	go auditCleanup.Start(ctx)
	go certSweep.Start(ctx)
	go cleanupProcessedEvents(ctx, eventSvc, cfg.CleanupInterval, cfg.EventRetention, appLogger)

	processor.Start(ctx)
}

func cleanupProcessedEvents(ctx context.Context, events *eventService.Service, interval, retention time.Duration, appLogger *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := events.CleanupProcessedEvents(ctx, retention)
			if err != nil {
				appLogger.Error(err, "Failed to clean up processed events")
				continue
			}
			if deleted > 0 {
				appLogger.Info("Cleaned up processed events", "deleted", deleted)
			}
		}
	}
}

func setupHealthCheck(port string, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			appLogger.Error(err, "Health check server failed")
		}
	}()
}
