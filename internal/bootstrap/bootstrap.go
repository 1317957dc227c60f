// Package bootstrap assembles the sync service and its infrastructure from
// configuration. Both the HTTP server and the CLI start from New.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	catalogsync "github.com/prostor/erpsync/internal/application/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/cache"
	"github.com/prostor/erpsync/internal/infrastructure/config"
	"github.com/prostor/erpsync/internal/infrastructure/erp"
	"github.com/prostor/erpsync/internal/infrastructure/logger"
	"github.com/prostor/erpsync/internal/infrastructure/persistence"
	"github.com/prostor/erpsync/internal/infrastructure/shopify"
	"github.com/prostor/erpsync/internal/infrastructure/storage"
	"github.com/prostor/erpsync/internal/infrastructure/telemetry"
	"github.com/prostor/erpsync/internal/interfaces/http/handler"
)

// Version is set at build time with -ldflags "-X .../bootstrap.Version=..."
var Version = "dev"

const (
	meterName         = "github.com/prostor/erpsync"
	gormSlowThreshold = 200 * time.Millisecond
)

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// App holds the wired service and everything that must be closed with it
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Service *catalogsync.Service
	DB      *persistence.Database
	Redis   *redis.Client
	Meter   metric.Meter

	closers []closer
}

// NewLogger builds the process logger from the log section
func NewLogger(cfg *config.LogConfig) (*zap.Logger, error) {
	return logger.New(LoggerConfig(cfg))
}

// New wires telemetry, both upstream clients, the optional archive, run
// history and run lock into a sync service. Resources opened before a
// failure are released before New returns.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			if closeErr := app.Close(context.WithoutCancel(ctx)); closeErr != nil {
				log.Warn("Failed to release resources after startup error", zap.Error(closeErr))
			}
		}
	}()

	if err := app.initTelemetry(ctx); err != nil {
		return nil, err
	}

	syncMetrics, err := telemetry.NewSyncMetrics(app.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	shopifyClient, err := shopify.NewClient(ShopifyConfig(cfg),
		shopify.WithThrottleObserver(syncMetrics),
		shopify.WithLogger(app.Logger),
	)
	if err != nil {
		return nil, err
	}

	bulkOpts := []shopify.BulkOption{shopify.WithBulkLogger(app.Logger)}
	if cfg.Storage.Enabled {
		archive, err := storage.NewS3PayloadArchive(ctx, &cfg.Storage, storage.WithLogger(app.Logger))
		if err != nil {
			return nil, err
		}
		bulkOpts = append(bulkOpts, shopify.WithArchiver(archive))
		app.Logger.Info("Payload archive enabled", zap.String("bucket", archive.Bucket()))
	}
	bulk := shopify.NewBulkPipeline(shopifyClient, bulkOpts...)
	catalog := shopify.NewCatalogReader(shopifyClient, app.Logger)

	source, err := erp.NewClient(ERPConfig(cfg),
		erp.WithObserver(syncMetrics),
		erp.WithLogger(app.Logger),
	)
	if err != nil {
		return nil, err
	}

	opts := []catalogsync.Option{
		catalogsync.WithLogger(app.Logger),
		catalogsync.WithMetrics(syncMetrics),
		catalogsync.WithRunTimeout(cfg.Sync.RunTimeout),
		catalogsync.WithLockTTL(cfg.Sync.LockTTL),
	}

	if cfg.Database.Enabled {
		db, err := persistence.NewDatabase(&cfg.Database,
			persistence.WithGormLogger(logger.NewGormLogger(app.Logger, logger.MapGormLogLevel(cfg.Log.Level), gormSlowThreshold)),
			persistence.WithTracing(cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled),
		)
		if err != nil {
			return nil, err
		}
		app.DB = db
		app.onClose("database", func(context.Context) error { return db.Close() })
		opts = append(opts, catalogsync.WithRunRepository(persistence.NewGormSyncRunRepository(db.DB)))
		app.Logger.Info("Run history enabled", zap.String("database", cfg.Database.DBName))
	}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.Redis = client
		app.onClose("redis", func(context.Context) error { return client.Close() })
		opts = append(opts, catalogsync.WithRunLock(cache.NewRedisRunLock(client, cfg.Redis.KeyPrefix)))
		app.Logger.Info("Redis run lock enabled", zap.String("addr", cfg.Redis.Addr()))
	} else {
		opts = append(opts, catalogsync.WithRunLock(cache.NewInMemoryRunLock()))
	}

	app.Service = catalogsync.NewService(source, catalog, bulk, opts...)
	return app, nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	cfg := &a.Config.Telemetry

	tp, err := telemetry.NewTracerProvider(ctx, TracerConfig(cfg), a.Logger)
	if err != nil {
		return err
	}
	a.onClose("tracer", tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, MetricsConfig(cfg), a.Logger)
	if err != nil {
		return err
	}
	a.onClose("meter", mp.Shutdown)
	a.Meter = mp.Meter(meterName)

	lp, err := telemetry.NewLoggerProvider(ctx, LogsConfig(cfg), a.Logger)
	if err != nil {
		return err
	}
	a.onClose("logs", lp.Shutdown)
	a.Logger = lp.Bridge(a.Logger, logger.ParseLevel(a.Config.Log.Level))
	return nil
}

func (a *App) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Close releases resources in reverse order of acquisition
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// HealthChecks returns a probe per enabled backing store
func (a *App) HealthChecks() map[string]handler.HealthCheck {
	checks := make(map[string]handler.HealthCheck)
	if a.DB != nil {
		checks["database"] = a.DB.Ping
	}
	if a.Redis != nil {
		client := a.Redis
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
