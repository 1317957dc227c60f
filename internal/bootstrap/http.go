package bootstrap

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/prostor/erpsync/internal/infrastructure/config"
	"github.com/prostor/erpsync/internal/infrastructure/logger"
	"github.com/prostor/erpsync/internal/interfaces/http/handler"
	"github.com/prostor/erpsync/internal/interfaces/http/middleware"
	"github.com/prostor/erpsync/internal/interfaces/http/router"
)

// EngineDeps are the inputs of NewEngine
type EngineDeps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Service handler.SyncService
	Meter   metric.Meter
	Checks  map[string]handler.HealthCheck
}

// Engine builds the HTTP engine for a from New
func (a *App) Engine() (*gin.Engine, func(), error) {
	return NewEngine(EngineDeps{
		Config:  a.Config,
		Logger:  a.Logger,
		Service: a.Service,
		Meter:   a.Meter,
		Checks:  a.HealthChecks(),
	})
}

// NewEngine assembles middleware and routes. The returned func stops
// background work owned by the engine.
func NewEngine(deps EngineDeps) (*gin.Engine, func(), error) {
	cfg := deps.Config
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, nil, err
	}

	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
		CronHeader:  cfg.Auth.CronHeader,
	})...)
	engine.Use(logger.Recovery(deps.Logger))
	engine.Use(logger.GinMiddleware(deps.Logger))
	engine.Use(middleware.HTTPMetrics(deps.Meter))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	cleanup := func() {}
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(limiter))
		cleanup = limiter.Close
	}

	health := handler.NewHealthHandler(cfg.App.Name, Version, deps.Checks)
	engine.GET("/health", health.Health)
	engine.GET("/info", health.Info)

	r := router.NewRouter(engine)
	router.NewSyncRoutes(handler.NewSyncHandler(deps.Service), middleware.TriggerAuthConfig{
		APIKey:     cfg.Auth.InternalAPIKey,
		CronHeader: cfg.Auth.CronHeader,
		Enforce:    cfg.App.IsProduction(),
	}).Mount(r)
	r.Setup()

	return engine, cleanup, nil
}
