package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appfieldservice "github.com/fieldops/backend/internal/application/fieldservice"
	appintegration "github.com/fieldops/backend/internal/application/integration"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/cache"
	"github.com/fieldops/backend/internal/infrastructure/config"
	"github.com/fieldops/backend/internal/infrastructure/ets"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/persistence"
	"github.com/fieldops/backend/internal/infrastructure/scheduler"
	"github.com/fieldops/backend/internal/infrastructure/secrets"
	"github.com/fieldops/backend/internal/infrastructure/telemetry"
	"github.com/fieldops/backend/internal/interfaces/http/handler"
	"github.com/fieldops/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

//	@title			FieldOps Reconciliation API
//	@version		1.0
//	@description	Synchronizes field-service tickets between an external ticketing system and local service orders.

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		ServiceName: cfg.Telemetry.ServiceName,
	}

	// Providers log through a bootstrap logger; the final logger also
	// bridges into the OTEL log pipeline.
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()
	providers, err := newTelemetry(ctx, cfg, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	log, err := logger.New(logCfg, telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		LoggerProvider: providers.logs,
		Level:          logger.ParseLevel(cfg.Log.Level),
	}))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting FieldOps reconciliation service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	db, dbMetrics, err := openDatabase(cfg, providers.meters, log)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}
	defer func() {
		if dbMetrics != nil {
			dbMetrics.Stop()
		}
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	codec, err := secrets.NewCodec(cfg.Secrets.Codec, cfg.Secrets.Key)
	if err != nil {
		log.Fatal("Failed to initialize secrets codec", zap.Error(err))
	}

	syncMetrics, err := telemetry.NewSyncMetrics(telemetry.SyncMetricsConfig{
		Meter:  providers.meters.Meter("fieldops.sync"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create sync metrics", zap.Error(err))
	}

	// Repositories
	orderRepo := persistence.NewGormServiceOrderRepository(db.DB)
	configRepo := persistence.NewGormIntegrationConfigRepository(db.DB)
	mappingRepo := persistence.NewGormTechnicianMappingRepository(db.DB)

	clients := ets.NewFactory(etsClientConfig(cfg.ETS), codec, log.Named("ets"))

	reconciler := appintegration.NewReconciler(
		configRepo,
		mappingRepo,
		clients,
		persistence.NewGormReconcileTransactionScope(db.DB),
		appintegration.ReconcilerConfig{
			TechnicianConcurrency: cfg.Reconciler.TechnicianConcurrency,
			FetchCustomers:        cfg.Reconciler.FetchCustomers,
		},
		log,
		appintegration.WithSyncRecorder(syncMetrics),
	)
	pusher := appintegration.NewCompletionPusher(orderRepo, configRepo, mappingRepo, clients, syncMetrics, log)

	var redisClient *redis.Client
	var idempotency shared.IdempotencyStore
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		idempotency = cache.NewRedisIdempotencyStore(redisClient, cache.DefaultIdempotencyKeyPrefix)
	} else {
		memStore := cache.NewInMemoryIdempotencyStore(5 * time.Minute)
		defer memStore.Close()
		idempotency = memStore
	}

	sched, err := newScheduler(cfg.Reconciler, reconciler, configRepo, syncMetrics, redisClient, log)
	if err != nil {
		log.Fatal("Failed to create reconcile scheduler", zap.Error(err))
	}

	orderService := appfieldservice.NewServiceOrderService(orderRepo, pusher, log)
	integrationService := appintegration.NewIntegrationService(configRepo, clients, sched, log)

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	// A nil interface, not a nil pointer, marks the scheduler as disabled
	var schedStatus handler.SchedulerStatus
	if cfg.Reconciler.Enabled {
		schedStatus = sched
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine, err := router.NewEngine(router.EngineConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		TracerProvider: providers.traces.Provider(),
		Meter:         httpMeter(providers.meters),
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Idempotency:    idempotency,
		IdempotencyTTL: cfg.HTTP.IdempotencyTTL,
	}, router.Handlers{
		ServiceOrders: handler.NewServiceOrderHandler(orderService),
		Integrations:  handler.NewIntegrationHandler(integrationService),
		Health:        handler.NewHealthHandler(sqlDB, schedStatus),
	}, log)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

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

	if cfg.Reconciler.Enabled {
		if err := sched.Start(ctx); err != nil {
			log.Fatal("Failed to start reconcile scheduler", zap.Error(err))
		}
	} else {
		log.Info("Reconcile scheduler disabled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	// Stop taking requests first so no completion push starts after the
	// scheduler is gone, then let a running sweep finish.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if cfg.Reconciler.Enabled {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("Reconcile scheduler did not stop cleanly", zap.Error(err))
		}
	}
	providers.shutdown(shutdownCtx, log)

	log.Info("Server exited gracefully")
}

// telemetryProviders groups the OTEL providers owned by the process
type telemetryProviders struct {
	traces *telemetry.TracerProvider
	meters *telemetry.MeterProvider
	logs   *telemetry.LoggerProvider
}

func newTelemetry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*telemetryProviders, error) {
	t := cfg.Telemetry
	exporter := telemetry.ExporterConfig{
		Enabled:           t.Enabled,
		CollectorEndpoint: t.CollectorEndpoint,
		ServiceName:       t.ServiceName,
		Insecure:          t.Insecure,
	}
	traces, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		ExporterConfig: exporter,
		SamplingRatio:  t.SamplingRatio,
	}, log)
	if err != nil {
		return nil, err
	}
	metricsExporter := exporter
	metricsExporter.Enabled = t.Enabled && t.MetricsEnabled
	meters, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		ExporterConfig: metricsExporter,
		ExportInterval: t.MetricsInterval,
	}, log)
	if err != nil {
		return nil, err
	}
	logs, err := telemetry.NewLoggerProvider(ctx, exporter, log)
	if err != nil {
		return nil, err
	}
	return &telemetryProviders{traces: traces, meters: meters, logs: logs}, nil
}

// shutdown flushes providers in reverse order of creation
func (p *telemetryProviders) shutdown(ctx context.Context, log *zap.Logger) {
	if err := p.logs.Shutdown(ctx); err != nil {
		log.Warn("Failed to shutdown logger provider", zap.Error(err))
	}
	if err := p.meters.Shutdown(ctx); err != nil {
		log.Warn("Failed to shutdown meter provider", zap.Error(err))
	}
	if err := p.traces.Shutdown(ctx); err != nil {
		log.Warn("Failed to shutdown tracer provider", zap.Error(err))
	}
}

// httpMeter returns nil when metrics are off so the middleware is skipped
func httpMeter(meters *telemetry.MeterProvider) metric.Meter {
	if !meters.IsEnabled() {
		return nil
	}
	return meters.Meter("fieldops.http")
}

// openDatabase connects, installs the tracing and metrics plugins and, for
// sqlite, creates the schema. PostgreSQL schemas are owned by cmd/migrate.
func openDatabase(cfg *config.Config, meters *telemetry.MeterProvider, log *zap.Logger) (*persistence.Database, *telemetry.DBMetrics, error) {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithGormLogger(gormLog))
	if err != nil {
		return nil, nil, err
	}

	dbSystem := "postgresql"
	if cfg.Database.Driver == persistence.DriverSQLite {
		dbSystem = "sqlite"
	}
	tracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log)
	if err := tracing.RegisterOtelGorm(db.DB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meters, telemetry.DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	if cfg.Database.Driver == persistence.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}

	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))
	return db, dbMetrics, nil
}

func etsClientConfig(c config.ETSConfig) ets.ClientConfig {
	return ets.ClientConfig{
		Timeout:          c.Timeout,
		PageSize:         c.PageSize,
		MaxPages:         c.MaxPages,
		MaxResponseBytes: c.MaxResponseBytes,
		RateLimitQPS:     c.RateLimitQPS,
		RateLimitBurst:   c.RateLimitBurst,
		Retry: ets.RetryPolicy{
			MaxAttempts: c.RetryMaxAttempts,
			BaseDelay:   c.RetryBaseDelay,
			MaxDelay:    c.RetryMaxDelay,
		},
	}
}

// newScheduler builds the sweep scheduler. It is built even when periodic
// sweeps are disabled because manual syncs share its skip-if-busy guard.
func newScheduler(
	cfg config.ReconcilerConfig,
	reconciler scheduler.TenantReconciler,
	tenants scheduler.TenantSource,
	recorder scheduler.SweepRecorder,
	redisClient *redis.Client,
	log *zap.Logger,
) (*scheduler.ReconcileScheduler, error) {
	opts := []scheduler.Option{scheduler.WithSweepRecorder(recorder)}
	if cfg.DistributedLock && redisClient != nil {
		opts = append(opts, scheduler.WithSweepLock(
			cache.NewRedisSweepLock(redisClient, cfg.LockKey, cfg.LockTTL, log),
		))
	}
	return scheduler.NewReconcileScheduler(reconciler, tenants, scheduler.ReconcileSchedulerConfig{
		Interval:      cfg.Interval,
		RunOnStart:    cfg.RunOnStart,
		TenantTimeout: cfg.TenantTimeout,
	}, log, opts...)
}
