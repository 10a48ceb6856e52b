package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	appevent "github.com/rental/backend/internal/application/event"
	apprental "github.com/rental/backend/internal/application/rental"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/infrastructure/auth"
	"github.com/rental/backend/internal/infrastructure/cache"
	"github.com/rental/backend/internal/infrastructure/config"
	"github.com/rental/backend/internal/infrastructure/event"
	"github.com/rental/backend/internal/infrastructure/logger"
	"github.com/rental/backend/internal/infrastructure/persistence"
	"github.com/rental/backend/internal/infrastructure/scheduler"
	"github.com/rental/backend/internal/infrastructure/telemetry"
	"github.com/rental/backend/internal/interfaces/http/handler"
	"github.com/rental/backend/internal/interfaces/http/middleware"
	"github.com/rental/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

//	@title			Rental Backend API
//	@version		1.0
//	@description	Equipment rental lifecycle and payment reconciliation
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// .env is a local-development convenience; a missing file is fine
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting rental backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	log = lp.Bridge(log, logger.ParseLevel(cfg.Telemetry.LogsLevel))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileTypes:      cfg.Profiling.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiling.Enabled && cfg.Profiling.SpanProfiles {
		tp.EnableSpanProfiles()
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if db.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to create sqlite schema", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	meter := mp.Meter("rental-backend")
	dbMetrics, err := telemetry.InstrumentGorm(db.DB, meter, telemetry.DBConfig{
		Tracing:            cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		PoolStatsInterval:  cfg.Telemetry.DBPoolStatsEvery,
	}, log)
	if err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	dbMetrics.StartPoolStats(ctx)

	metrics, err := telemetry.NewBusinessMetrics(telemetry.BusinessMetricsConfig{
		Meter:       meter,
		Logger:      log,
		Receivables: telemetry.NewGormReceivablesProvider(db.DB),
	})
	if err != nil {
		log.Fatal("Failed to create business metrics", zap.Error(err))
	}
	metrics.StartPeriodicCollection(ctx, cfg.Telemetry.ReceivablesInterval)

	// Idempotency store shared by Idempotency-Key and event de-duplication
	var idemStore shared.IdempotencyStore
	if cfg.Idempotency.Enabled {
		idemStore, err = cache.NewIdempotencyStoreFactory(cfg.Idempotency, cfg.Redis,
			cache.WithLogger(log),
			cache.WithInMemoryFallback(cfg.App.Env != "production"),
		).CreateStore(ctx)
		if err != nil {
			log.Fatal("Failed to create idempotency store", zap.Error(err))
		}
		defer func() { _ = idemStore.Close() }()
	}

	// Events: outbox written in the mutation's transaction, delivered to the bus
	serializer := event.NewEventSerializer()
	event.RegisterRentalEvents(serializer)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	outboxPublisher := event.NewOutboxPublisher(serializer, cfg.Event.MaxRetries)

	bus := event.NewInMemoryEventBus(log)
	var rentalEvents shared.EventHandler = apprental.NewRentalEventHandler(log, metrics)
	if idemStore != nil {
		rentalEvents = event.NewIdempotentHandler(rentalEvents, idemStore, log)
	}
	bus.Subscribe(rentalEvents, rentalEvents.EventTypes()...)
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	var processor *event.OutboxProcessor
	if cfg.Event.ProcessorEnabled {
		processor = event.NewOutboxProcessor(outboxRepo, bus, serializer, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
		}, log, metrics)
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	// Application services
	scope := persistence.NewGormTransactionScope(db.DB, outboxPublisher)
	rentalRepo := persistence.NewGormRentalRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	opts := []apprental.Option{
		apprental.WithLogger(log),
		apprental.WithMetrics(metrics),
		apprental.WithLedger(cfg.Ledger.Enabled),
		apprental.WithCurrency(cfg.Ledger.Currency, cfg.Ledger.Locale),
	}
	rentalService := apprental.NewRentalService(scope, rentalRepo, opts...)
	statusService := apprental.NewStatusService(scope, opts...)
	reconciliation := apprental.NewReconciliationService(scope, rentalRepo, paymentRepo, opts...)
	overdue := apprental.NewOverdueService(scope, rentalRepo, cfg.Scheduler.BatchLimit, opts...)

	var overdueScheduler *scheduler.OverdueScheduler
	if cfg.Scheduler.Enabled {
		overdueScheduler, err = scheduler.NewOverdueScheduler(scheduler.OverdueSchedulerConfig{
			Schedule:   cfg.Scheduler.OverdueCron,
			JobTimeout: cfg.Scheduler.JobTimeout,
		}, overdue, log)
		if err != nil {
			log.Fatal("Failed to create overdue scheduler", zap.Error(err))
		}
		if err := overdueScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start overdue scheduler", zap.Error(err))
		}
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var verifier middleware.TokenVerifier
	if cfg.Auth.Enabled {
		verifier = auth.NewTokenVerifier(cfg.Auth)
	}
	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		go limiter.Run(ctx)
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	engine := router.NewEngine(router.Deps{
		Config:      cfg,
		Logger:      log,
		Verifier:    verifier,
		Idempotency: idemStore,
		RateLimiter: limiter,
		Metrics:     middleware.NewHTTPMetrics(registry, "rental"),
		Gatherer:    registry,
	}, router.Handlers{
		System:   handler.NewSystemHandler(cfg.App.Name, cfg.App.Version, sqlDB),
		Rentals:  handler.NewRentalHandler(rentalService, statusService),
		Payments: handler.NewPaymentHandler(reconciliation),
		Outbox:   handler.NewOutboxHandler(appevent.NewOutboxService(outboxRepo, log)),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if overdueScheduler != nil {
		logIfErr(log, "overdue scheduler", overdueScheduler.Stop(shutdownCtx))
	}
	if processor != nil {
		logIfErr(log, "outbox processor", processor.Stop(shutdownCtx))
	}
	logIfErr(log, "event bus", bus.Stop(shutdownCtx))
	metrics.Stop()
	dbMetrics.Stop()
	logIfErr(log, "profiler", profiler.Stop())
	logIfErr(log, "meter provider", mp.Shutdown(shutdownCtx))
	logIfErr(log, "tracer provider", tp.Shutdown(shutdownCtx))
	logIfErr(log, "log exporter", lp.Shutdown(shutdownCtx))

	log.Info("Server exited gracefully")
}

func logIfErr(log *zap.Logger, component string, err error) {
	if err != nil {
		log.Warn("Shutdown error", zap.String("component", component), zap.Error(err))
	}
}
