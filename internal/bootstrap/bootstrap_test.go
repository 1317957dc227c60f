package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	catalogsync "github.com/prostor/erpsync/internal/application/catalogsync"
	domain "github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/config"
	"github.com/prostor/erpsync/internal/infrastructure/erp"
	"github.com/prostor/erpsync/internal/infrastructure/shopify"
	"github.com/prostor/erpsync/internal/interfaces/http/handler"
	"github.com/prostor/erpsync/internal/interfaces/http/middleware"
)

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "erpsync", Env: "development", Port: "8080"},
		Shopify: config.ShopifyConfig{
			StoreDomain: "prostor.myshopify.com",
			AdminToken:  "shpat_test",
			APIVersion:  "2024-07",
			Timeout:     30 * time.Second,
			Retry: config.RetryConfig{
				MaxAttempts:    10,
				ErrorDelay:     5 * time.Second,
				ThrottleMargin: 100 * time.Millisecond,
			},
		},
		Auth: config.AuthConfig{InternalAPIKey: "secret", CronHeader: "x-vercel-cron"},
		Sync: config.SyncConfig{RunTimeout: 15 * time.Minute, LockTTL: 30 * time.Minute},
		Log:  config.LogConfig{Level: "info", Format: "json", Output: "stdout"},
		HTTP: config.HTTPConfig{
			MaxBodySize:       1 << 20,
			RateLimitRequests: 30,
			RateLimitWindow:   time.Minute,
		},
		Scheduler: config.SchedulerConfig{Hour: 3, Minute: 30},
		Telemetry: config.TelemetryConfig{ServiceName: "erpsync", SamplingRatio: 1},
	}
}

func TestShopifyConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Shopify.Endpoint = "http://localhost:9999/graphql"
	cfg.Shopify.Retry.MaxElapsed = 5 * time.Minute

	got := ShopifyConfig(cfg)

	assert.Equal(t, "prostor.myshopify.com", got.StoreDomain)
	assert.Equal(t, "shpat_test", got.AdminToken)
	assert.Equal(t, "2024-07", got.APIVersion)
	assert.Equal(t, "http://localhost:9999/graphql", got.Endpoint)
	assert.Equal(t, 30*time.Second, got.Timeout)
	assert.Equal(t, shopify.RetryPolicy{
		MaxAttempts:    10,
		MaxElapsed:     5 * time.Minute,
		ErrorDelay:     5 * time.Second,
		ThrottleMargin: 100 * time.Millisecond,
	}, got.Retry)
	require.NoError(t, got.Validate())
}

func TestShopifyConfig_KeepsDefaultsForUnsetFields(t *testing.T) {
	cfg := testConfig()
	cfg.Shopify.APIVersion = ""
	cfg.Shopify.Timeout = 0

	got := ShopifyConfig(cfg)

	assert.Equal(t, shopify.DefaultAPIVersion, got.APIVersion)
	assert.Equal(t, shopify.DefaultTimeout, got.Timeout)
}

func TestERPConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		got := ERPConfig(testConfig())

		assert.Equal(t, erp.DefaultPricesURL, got.PricesURL)
		assert.Equal(t, erp.DefaultDiscountsURL, got.DiscountsURL)
		assert.Equal(t, erp.DefaultStockURL, got.StockURL)
		assert.Equal(t, []string{erp.DefaultCostURL1, erp.DefaultCostURL2}, got.CostURLs)
		assert.Equal(t, erp.DefaultTimeout, got.Timeout)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg := testConfig()
		cfg.ERP = config.ERPConfig{
			PricesURL:    "https://erp.test/prices",
			DiscountsURL: "https://erp.test/discounts",
			StockURL:     "https://erp.test/stock",
			CostURLs:     []string{"https://erp.test/costs"},
			Username:     "user",
			Password:     "pass",
			Timeout:      10 * time.Second,
		}

		got := ERPConfig(cfg)

		assert.Equal(t, "https://erp.test/prices", got.PricesURL)
		assert.Equal(t, "https://erp.test/discounts", got.DiscountsURL)
		assert.Equal(t, "https://erp.test/stock", got.StockURL)
		assert.Equal(t, []string{"https://erp.test/costs"}, got.CostURLs)
		assert.True(t, got.HasCredentials())
		assert.Equal(t, 10*time.Second, got.Timeout)

		got.CostURLs[0] = "mutated"
		assert.Equal(t, "https://erp.test/costs", cfg.ERP.CostURLs[0])
	})
}

func TestTelemetryConfigs(t *testing.T) {
	cfg := &config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "collector:4317",
		SamplingRatio:     0.5,
		ServiceName:       "erpsync",
		Insecure:          true,
		MetricsEnabled:    false,
		MetricsInterval:   30 * time.Second,
		LogsEnabled:       true,
	}

	tracer := TracerConfig(cfg)
	assert.True(t, tracer.Enabled)
	assert.Equal(t, 0.5, tracer.SamplingRatio)
	assert.Equal(t, "collector:4317", tracer.CollectorEndpoint)

	metrics := MetricsConfig(cfg)
	assert.False(t, metrics.Enabled)
	assert.Equal(t, 30*time.Second, metrics.ExportInterval)

	logs := LogsConfig(cfg)
	assert.True(t, logs.Enabled)

	cfg.Enabled = false
	assert.False(t, LogsConfig(cfg).Enabled)
}

func TestSchedulerConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Location = "Asia/Dubai"

	got := SchedulerConfig(cfg)

	assert.Equal(t, 3, got.Hour)
	assert.Equal(t, 30, got.Minute)
	assert.Equal(t, "Asia/Dubai", got.Location.String())
	assert.Equal(t, 15*time.Minute, got.Timeout)
}

func TestNew_WithoutOptionalBackends(t *testing.T) {
	app, err := New(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	assert.NotNil(t, app.Service)
	assert.Nil(t, app.DB)
	assert.Nil(t, app.Redis)
	assert.NotNil(t, app.Meter)
	assert.Empty(t, app.HealthChecks())

	sched, err := app.Scheduler()
	require.NoError(t, err)
	assert.Nil(t, sched)
}

func TestNew_InvalidShopifyConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Shopify.AdminToken = ""

	_, err := New(context.Background(), cfg, zap.NewNop())

	assert.ErrorIs(t, err, shopify.ErrConfigMissingAdminToken)
}

func TestApp_Scheduler(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Enabled = true
	app, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	sched, err := app.Scheduler()
	require.NoError(t, err)
	require.NotNil(t, sched)

	now := time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC), sched.NextRun(now))
}

func TestApp_CloseRunsInReverseOrder(t *testing.T) {
	app := &App{}
	var order []string
	errFirst := errors.New("first failed")
	app.onClose("first", func(context.Context) error {
		order = append(order, "first")
		return errFirst
	})
	app.onClose("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})

	err := app.Close(context.Background())

	assert.ErrorIs(t, err, errFirst)
	assert.Contains(t, err.Error(), "close first")
	assert.Equal(t, []string{"second", "first"}, order)
	assert.NoError(t, app.Close(context.Background()))
}

type stubService struct {
	dailyCalls int
}

func (s *stubService) RunDailySync(context.Context) (*catalogsync.DailySyncResult, error) {
	s.dailyCalls++
	return &catalogsync.DailySyncResult{RunID: uuid.New(), PriceUpdates: 2}, nil
}

func (s *stubService) RunCostUpdate(context.Context) (*catalogsync.CostUpdateResult, error) {
	return &catalogsync.CostUpdateResult{RunID: uuid.New()}, nil
}

func (s *stubService) ListRuns(context.Context, int) ([]*domain.SyncRun, error) {
	return nil, nil
}

func (s *stubService) GetRun(context.Context, uuid.UUID) (*domain.SyncRun, error) {
	return nil, domain.ErrRunNotFound
}

func newTestEngine(t *testing.T, cfg *config.Config, svc *stubService, checks map[string]handler.HealthCheck) http.Handler {
	t.Helper()
	engine, cleanup, err := NewEngine(EngineDeps{Config: cfg, Logger: zap.NewNop(), Service: svc, Checks: checks})
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return engine
}

func serve(h http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewEngine_Routes(t *testing.T) {
	svc := &stubService{}
	engine := newTestEngine(t, testConfig(), svc, nil)

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		want    int
	}{
		{"health", http.MethodGet, "/health", nil, http.StatusOK},
		{"info", http.MethodGet, "/info", nil, http.StatusOK},
		{"legacy daily without auth outside production", http.MethodGet, "/api/cron/daily-sync", nil, http.StatusOK},
		{"versioned daily via POST", http.MethodPost, "/api/v1/sync/daily", nil, http.StatusOK},
		{"legacy costs require key", http.MethodPost, "/api/update-costs", nil, http.StatusUnauthorized},
		{"legacy costs with key", http.MethodPost, "/api/update-costs", map[string]string{"x-api-key": "secret"}, http.StatusOK},
		{"runs require key", http.MethodGet, "/api/v1/sync/runs", nil, http.StatusUnauthorized},
		{"run not found", http.MethodGet, "/api/v1/sync/runs/" + uuid.NewString(), map[string]string{"x-api-key": "secret"}, http.StatusNotFound},
		{"unknown route", http.MethodGet, "/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(engine, tt.method, tt.path, tt.headers)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
		})
	}
	assert.Equal(t, 2, svc.dailyCalls)
}

func TestNewEngine_ProductionEnforcesDailyAuth(t *testing.T) {
	cfg := testConfig()
	cfg.App.Env = config.EnvProduction
	svc := &stubService{}
	engine := newTestEngine(t, cfg, svc, nil)

	w := serve(engine, http.MethodGet, "/api/cron/daily-sync", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(engine, http.MethodGet, "/api/cron/daily-sync", map[string]string{"x-vercel-cron": "1"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(engine, http.MethodGet, "/api/cron/daily-sync", map[string]string{"x-api-key": "secret"})
	assert.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 2, svc.dailyCalls)
}

func TestNewEngine_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.RateLimitEnabled = true
	cfg.HTTP.RateLimitRequests = 2
	engine := newTestEngine(t, cfg, &stubService{}, nil)

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodGet, "/health", nil).Code)
}

func TestNewEngine_HealthReportsFailingCheck(t *testing.T) {
	engine := newTestEngine(t, testConfig(), &stubService{}, map[string]handler.HealthCheck{
		"database": func(context.Context) error { return errors.New("connection refused") },
	})

	w := serve(engine, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")
}
