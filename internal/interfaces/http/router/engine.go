package router

import (
	"time"

	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/interfaces/http/handler"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EngineConfig configures the HTTP engine
type EngineConfig struct {
	ServiceName    string
	TracingEnabled bool
	TracerProvider trace.TracerProvider
	// Meter may be nil to disable HTTP metrics
	Meter          metric.Meter
	MaxBodySize    int64
	RateLimitRPS   float64 // zero or negative disables limiting
	RateLimitBurst int
	TrustedProxies []string
	// Idempotency may be nil to disable Idempotency-Key checks
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
}

// Handlers are the HTTP handlers served by the engine
type Handlers struct {
	ServiceOrders *handler.ServiceOrderHandler
	Integrations  *handler.IntegrationHandler
	Health        *handler.HealthHandler
}

// NewEngine builds the gin engine with the middleware chain and every route.
// Health routes sit outside the tenant-scoped API.
func NewEngine(cfg EngineConfig, h Handlers, log *zap.Logger) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName:    cfg.ServiceName,
			Enabled:        cfg.TracingEnabled,
			TracerProvider: cfg.TracerProvider,
		}),
		middleware.SpanAttributes(),
		logger.GinMiddleware(log),
		middleware.HTTPMetrics(cfg.Meter, log),
		middleware.Secure(),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	engine.GET("/health", h.Health.Health)
	engine.GET("/health/scheduler", h.Health.Scheduler)

	apiMiddleware := []gin.HandlerFunc{middleware.Tenant()}
	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)
		apiMiddleware = append(apiMiddleware, middleware.RateLimit(limiter))
	}
	apiMiddleware = append(apiMiddleware, middleware.Idempotency(cfg.Idempotency, cfg.IdempotencyTTL, log))

	orders := NewResourceGroup("/service-orders").
		GET("/sync-failures", h.ServiceOrders.ListSyncFailures).
		GET("/:id", h.ServiceOrders.GetByID).
		POST("/:id/complete", h.ServiceOrders.Complete).
		POST("/:id/sync-retry", h.ServiceOrders.RetrySync)

	integrations := NewResourceGroup("/integrations/ets").
		GET("/test-connection", h.Integrations.TestConnection).
		POST("/sync", h.Integrations.Sync)

	NewAPI(DefaultAPIVersion, apiMiddleware...).
		Mount(orders, integrations).
		Install(engine)

	return engine, nil
}
