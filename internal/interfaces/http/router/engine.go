package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rental/backend/internal/domain/shared"
	"github.com/rental/backend/internal/infrastructure/config"
	"github.com/rental/backend/internal/infrastructure/logger"
	"github.com/rental/backend/internal/interfaces/http/handler"
	"github.com/rental/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers mounted by NewEngine
type Handlers struct {
	System   *handler.SystemHandler
	Rentals  *handler.RentalHandler
	Payments *handler.PaymentHandler
	// Outbox is optional; nil leaves the operator routes unmounted
	Outbox *handler.OutboxHandler
}

// Deps are the collaborators of the middleware chain. Every field except
// Config and Logger may be nil, which switches that layer off.
type Deps struct {
	Config      *config.Config
	Logger      *zap.Logger
	Verifier    middleware.TokenVerifier
	Idempotency shared.IdempotencyStore
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
}

// NewEngine builds the gin engine with the full middleware chain and all
// routes of the rental API
func NewEngine(deps Deps, h Handlers) *gin.Engine {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log))
	if deps.Metrics != nil {
		engine.Use(deps.Metrics.Middleware())
	}
	engine.Use(middleware.SecureWithConfig(middleware.DefaultSecurityConfig()))
	engine.Use(middleware.CORSWithConfig(corsConfig(cfg.HTTP)))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", h.System.Health)
	if cfg.HTTP.MetricsEnabled && deps.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	r := NewRouter(engine, WithAPIVersion("v1"), WithGroupMiddleware(apiMiddleware(deps, log)...))

	system := NewDomainGroup("system", "/system")
	system.GET("/ping", h.System.Ping)
	system.GET("/info", h.System.GetSystemInfo)
	if h.Outbox != nil {
		outbox := system.Group("outbox", "/outbox")
		read := guard(deps.Verifier, middleware.PermissionOutboxRead)
		retry := guard(deps.Verifier, middleware.PermissionOutboxRetry)
		outbox.GET("/dead", append(read, h.Outbox.GetDeadLetterEntries)...)
		outbox.GET("/stats", append(read, h.Outbox.GetStats)...)
		outbox.GET("/:id", append(read, h.Outbox.GetEntry)...)
		outbox.POST("/dead/retry-all", append(retry, h.Outbox.RetryAllDeadEntries)...)
		outbox.POST("/:id/retry", append(retry, h.Outbox.RetryDeadEntry)...)
	}
	r.Register(system)

	rentals := NewDomainGroup("rentals", "/rentals")
	rentals.POST("", h.Rentals.Create)
	rentals.GET("", h.Rentals.List)
	rentals.GET("/:id", h.Rentals.Get)
	rentals.PUT("/:id", h.Rentals.UpdateTerms)
	rentals.GET("/:id/financials", h.Payments.GetFinancials)
	rentals.POST("/:id/reconcile", h.Payments.Reconcile)
	rentals.POST("/:id/status", h.Rentals.Transition)
	rentals.POST("/:id/deliver", h.Rentals.ConfirmDelivery)
	rentals.POST("/:id/return", h.Rentals.ConfirmReturn)
	rentals.POST("/:id/cancel", h.Rentals.Cancel)
	rentals.POST("/:id/reopen", h.Rentals.Reopen)
	rentals.POST("/:id/undo-delivery", h.Rentals.UndoDelivery)
	rentals.GET("/:id/payments", h.Payments.ListPayments)
	addPayment := []gin.HandlerFunc{h.Payments.AddPayment}
	if deps.Idempotency != nil {
		addPayment = append([]gin.HandlerFunc{middleware.IdempotencyKey(deps.Idempotency, idempotencyTTL(cfg))}, addPayment...)
	}
	rentals.POST("/:id/payments", addPayment...)
	r.Register(rentals)

	payments := NewDomainGroup("payments", "/payments")
	payments.DELETE("/:id", h.Payments.DeletePayment)
	r.Register(payments)

	r.Setup()
	return engine
}

// apiMiddleware is the per-request chain of the versioned API: timeout,
// authentication, tenant resolution, then labelling and rate limiting which
// both key on the tenant
func apiMiddleware(deps Deps, log *zap.Logger) []gin.HandlerFunc {
	cfg := deps.Config
	mw := []gin.HandlerFunc{}
	if cfg.HTTP.WriteTimeout > 0 {
		mw = append(mw, middleware.Timeout(cfg.HTTP.WriteTimeout))
	}
	if deps.Verifier != nil {
		jwtCfg := middleware.DefaultJWTConfig(deps.Verifier)
		jwtCfg.Logger = log
		mw = append(mw, middleware.JWTAuthMiddlewareWithConfig(jwtCfg))
	}

	tenantCfg := middleware.DefaultTenantConfig()
	tenantCfg.HeaderEnabled = deps.Verifier == nil
	tenantCfg.Logger = log
	mw = append(mw,
		middleware.TenantMiddleware(tenantCfg),
		middleware.TracingAttributeInjector(),
		middleware.ProfilingLabels(deps.Config.Profiling.Enabled),
	)
	if cfg.HTTP.RateLimitEnabled && deps.RateLimiter != nil {
		mw = append(mw, middleware.RateLimit(deps.RateLimiter))
	}
	return mw
}

// guard returns the permission check for operator routes. Without a token
// verifier there are no claims to check and the routes stay open.
func guard(verifier middleware.TokenVerifier, permission string) []gin.HandlerFunc {
	if verifier == nil {
		return nil
	}
	return []gin.HandlerFunc{middleware.RequirePermission(permission)}
}

func corsConfig(cfg config.HTTPConfig) middleware.CORSConfig {
	c := middleware.DefaultCORSConfig()
	if len(cfg.CORSAllowOrigins) > 0 {
		c.AllowOrigins = cfg.CORSAllowOrigins
	}
	if len(cfg.CORSAllowMethods) > 0 {
		c.AllowMethods = cfg.CORSAllowMethods
	}
	if len(cfg.CORSAllowHeaders) > 0 {
		c.AllowHeaders = cfg.CORSAllowHeaders
	}
	return c
}

func idempotencyTTL(cfg *config.Config) time.Duration {
	if cfg.Idempotency.TTL > 0 {
		return cfg.Idempotency.TTL
	}
	return 24 * time.Hour
}
