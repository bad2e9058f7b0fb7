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

	"github.com/triagewell/hospital-queue/internal/adapters/cache"
	"github.com/triagewell/hospital-queue/internal/adapters/database"
	"github.com/triagewell/hospital-queue/internal/adapters/events"
	"github.com/triagewell/hospital-queue/internal/adapters/memory"
	"github.com/triagewell/hospital-queue/internal/api/handlers"
	"github.com/triagewell/hospital-queue/internal/api/routes"
	"github.com/triagewell/hospital-queue/internal/application/services"
	"github.com/triagewell/hospital-queue/internal/domain/providers"
	"github.com/triagewell/hospital-queue/internal/domain/repositories"
	"github.com/triagewell/hospital-queue/internal/infrastructure/clients/postgres"
	"github.com/triagewell/hospital-queue/internal/infrastructure/clients/redis"
	"github.com/triagewell/hospital-queue/internal/infrastructure/observability"
	"github.com/triagewell/hospital-queue/internal/queue"
	"github.com/triagewell/hospital-queue/internal/stats"
	"github.com/triagewell/hospital-queue/internal/token"
	"github.com/triagewell/hospital-queue/pkg/config"
	"github.com/triagewell/hospital-queue/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		otelShutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("failed to set up OpenTelemetry")
		} else {
			defer func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := otelShutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	// Select the durable store. The memory driver keeps everything
	// in-process and is intended for development and tests.
	var (
		patientRepo    repositories.PatientRepository
		departmentRepo repositories.DepartmentRepository
		doctorRepo     repositories.DoctorRepository
		auditRepo      repositories.AuditRepository
		statsRepo      repositories.StatisticsRepository
	)

	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus

	storeDriver := os.Getenv("STORE_DRIVER")
	if storeDriver == "" {
		storeDriver = "postgres"
	}

	switch storeDriver {
	case "memory":
		patientRepo = memory.NewPatientAdapter()
		departmentRepo = memory.NewDepartmentAdapter()
		doctorRepo = memory.NewDoctorAdapter()
		auditRepo = memory.NewAuditAdapter()
		statsRepo = memory.NewStatisticsAdapter()
		log.Info().Msg("using in-memory store")

	case "postgres":
		pgClient, err := postgres.NewClient(&cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize PostgreSQL client")
		}
		defer pgClient.Close()

		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			// The queue works without Redis; caching and real-time
			// streams are simply disabled.
			log.Warn().Err(err).Msg("failed to initialize Redis client")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
			log.Info().Msg("Redis cache and event bus initialized")
		}

		patientRepo = database.NewPatientAdapter(pgClient)
		doctorRepo = database.NewDoctorAdapter(pgClient)
		auditRepo = database.NewAuditAdapter(pgClient)
		statsRepo = database.NewStatisticsAdapter(pgClient)

		departmentRepo = database.NewDepartmentAdapter(pgClient)
		if cacheProvider != nil {
			departmentRepo = database.NewCachedDepartmentAdapter(departmentRepo, cacheProvider)
		}

	default:
		log.Fatal().Str("driver", storeDriver).Msg("unknown STORE_DRIVER")
	}

	// Assemble the queue core
	engine := queue.NewEngine()
	estimator := stats.NewEstimator()
	generator := token.NewGenerator(departmentRepo)
	retryCfg := retry.DefaultConfig().WithAttempts(cfg.Queue.PersistRetryAttempts)

	queueService := services.NewQueueService(
		engine,
		generator,
		estimator,
		patientRepo,
		departmentRepo,
		doctorRepo,
		auditRepo,
		statsRepo,
		eventBus,
		metrics,
		retryCfg,
	)

	if err := queueService.Restore(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore queue state")
	}
	log.Info().Msg("queue state restored")

	statisticsService := services.NewStatisticsService(engine, estimator, departmentRepo, doctorRepo)
	auditService := services.NewAuditService(auditRepo)

	// Initialize handlers
	patientHandler := handlers.NewPatientHandler(queueService)
	departmentHandler := handlers.NewDepartmentHandler(queueService, statisticsService)
	auditHandler := handlers.NewAuditHandler(auditService, queueService, cfg.Queue.PurgeAfterDays)

	var sseHandler *handlers.SSEHandler
	if eventBus != nil {
		sseHandler = handlers.NewSSEHandler(eventBus)
	}

	router := routes.NewRouter(
		patientHandler,
		departmentHandler,
		auditHandler,
		sseHandler,
		metrics,
	)
	handler := router.SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", serverAddr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("error during server shutdown")
	}

	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing event bus")
		}
	}

	log.Info().Msg("server stopped")
}
