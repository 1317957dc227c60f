package bootstrap

import (
	"github.com/prostor/erpsync/internal/infrastructure/config"
	"github.com/prostor/erpsync/internal/infrastructure/erp"
	"github.com/prostor/erpsync/internal/infrastructure/logger"
	"github.com/prostor/erpsync/internal/infrastructure/scheduler"
	"github.com/prostor/erpsync/internal/infrastructure/shopify"
	"github.com/prostor/erpsync/internal/infrastructure/telemetry"
)

// ShopifyConfig converts the loaded settings into the client configuration
func ShopifyConfig(cfg *config.Config) *shopify.Config {
	c := shopify.NewConfig(cfg.Shopify.StoreDomain, cfg.Shopify.AdminToken)
	if cfg.Shopify.APIVersion != "" {
		c.APIVersion = cfg.Shopify.APIVersion
	}
	c.Endpoint = cfg.Shopify.Endpoint
	if cfg.Shopify.Timeout > 0 {
		c.Timeout = cfg.Shopify.Timeout
	}
	c.Retry = shopify.RetryPolicy{
		MaxAttempts:    cfg.Shopify.Retry.MaxAttempts,
		MaxElapsed:     cfg.Shopify.Retry.MaxElapsed,
		ErrorDelay:     cfg.Shopify.Retry.ErrorDelay,
		ThrottleMargin: cfg.Shopify.Retry.ThrottleMargin,
	}
	return c
}

// ERPConfig converts the loaded settings into the feed client
// configuration. Unset endpoints keep the built-in 1C defaults.
func ERPConfig(cfg *config.Config) *erp.Config {
	c := erp.DefaultConfig()
	if cfg.ERP.PricesURL != "" {
		c.PricesURL = cfg.ERP.PricesURL
	}
	if cfg.ERP.DiscountsURL != "" {
		c.DiscountsURL = cfg.ERP.DiscountsURL
	}
	if cfg.ERP.StockURL != "" {
		c.StockURL = cfg.ERP.StockURL
	}
	if len(cfg.ERP.CostURLs) > 0 {
		c.CostURLs = append([]string(nil), cfg.ERP.CostURLs...)
	}
	c.Username = cfg.ERP.Username
	c.Password = cfg.ERP.Password
	if cfg.ERP.Timeout > 0 {
		c.Timeout = cfg.ERP.Timeout
	}
	return c
}

// LoggerConfig converts the log section
func LoggerConfig(cfg *config.LogConfig) *logger.Config {
	c := logger.DefaultConfig()
	c.Level = cfg.Level
	c.Format = cfg.Format
	c.Output = cfg.Output
	return c
}

// TracerConfig converts the telemetry section for traces
func TracerConfig(cfg *config.TelemetryConfig) telemetry.Config {
	return telemetry.Config{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		SamplingRatio:     cfg.SamplingRatio,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}
}

// MetricsConfig converts the telemetry section for metrics
func MetricsConfig(cfg *config.TelemetryConfig) telemetry.MetricsConfig {
	return telemetry.MetricsConfig{
		Enabled:           cfg.Enabled && cfg.MetricsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ExportInterval:    cfg.MetricsInterval,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}
}

// LogsConfig converts the telemetry section for log export
func LogsConfig(cfg *config.TelemetryConfig) telemetry.LogsConfig {
	return telemetry.LogsConfig{
		Enabled:           cfg.Enabled && cfg.LogsEnabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		ServiceName:       cfg.ServiceName,
		Insecure:          cfg.Insecure,
	}
}

// SchedulerConfig converts the scheduler section; each scheduled run is
// bounded by the sync run timeout.
func SchedulerConfig(cfg *config.Config) scheduler.DailyTriggerConfig {
	return scheduler.DailyTriggerConfig{
		Hour:     cfg.Scheduler.Hour,
		Minute:   cfg.Scheduler.Minute,
		Location: cfg.Scheduler.SchedulerLocation(),
		Timeout:  cfg.Sync.RunTimeout,
	}
}
