package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvProduction is the environment in which trigger authentication is enforced
const EnvProduction = "production"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Shopify   ShopifyConfig
	ERP       ERPConfig
	Auth      AuthConfig
	Sync      SyncConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string `validate:"oneof=development test staging preview production"`
	Port string `validate:"numeric"`
}

// IsProduction reports whether the service runs in production
func (a AppConfig) IsProduction() bool {
	return a.Env == EnvProduction
}

// ShopifyConfig holds Admin API settings
type ShopifyConfig struct {
	StoreDomain string
	AdminToken  string
	APIVersion  string
	Endpoint    string `validate:"omitempty,url"`
	Timeout     time.Duration
	Retry       RetryConfig
}

// RetryConfig bounds throttle and rate-limit retries (zero = unlimited)
type RetryConfig struct {
	MaxAttempts    int           `validate:"gte=0"`
	MaxElapsed     time.Duration `validate:"gte=0"`
	ErrorDelay     time.Duration
	ThrottleMargin time.Duration `validate:"gte=0"`
}

// ERPConfig holds the 1C feed endpoints
type ERPConfig struct {
	PricesURL    string   `validate:"omitempty,url"`
	DiscountsURL string   `validate:"omitempty,url"`
	StockURL     string   `validate:"omitempty,url"`
	CostURLs     []string `validate:"dive,url"`
	Username     string
	Password     string
	Timeout      time.Duration
}

// AuthConfig holds trigger authentication settings
type AuthConfig struct {
	InternalAPIKey string
	CronHeader     string
}

// SyncConfig holds orchestration settings
type SyncConfig struct {
	RunTimeout time.Duration
	LockTTL    time.Duration
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// StorageConfig holds S3-compatible payload archive settings
type StorageConfig struct {
	Enabled      bool
	Endpoint     string
	Region       string
	Bucket       string `validate:"required_if=Enabled true"`
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	UsePathStyle bool
	Prefix       string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"` // debug, info, warn, error
	Format string `validate:"oneof=json console"`          // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	TrustedProxies    []string
}

// SchedulerConfig holds the in-process daily trigger configuration
type SchedulerConfig struct {
	Enabled bool
	Hour    int `validate:"gte=0,lte=23"`
	Minute  int `validate:"gte=0,lte=59"`
	// Location is an IANA zone name; empty means UTC
	Location string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 `validate:"gte=0,lte=1"` // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
}

// legacyEnv maps config keys to the variable names of the legacy deployment.
// The SYNC_ prefixed name always wins when both are set.
var legacyEnv = map[string]string{
	"app.env":               "VERCEL_ENV",
	"shopify.store_domain":  "SHOPIFY_STORE_DOMAIN",
	"shopify.admin_token":   "SHOPIFY_ADMIN_TOKEN",
	"shopify.api_version":   "API_VERSION",
	"erp.prices_url":        "ONE_C_PRICES_URL",
	"erp.discounts_url":     "ONE_C_DISCOUNTS_URL",
	"erp.stock_url":         "ONE_C_STOCK_URL",
	"erp.cost_url_1":        "ONE_C_URL_1",
	"erp.cost_url_2":        "ONE_C_URL_2",
	"erp.username":          "ONE_C_USERNAME",
	"erp.password":          "ONE_C_PASSWORD",
	"auth.internal_api_key": "INTERNAL_API_KEY",
}

const envPrefix = "SYNC"

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SYNC_ prefix (e.g., SYNC_SHOPIFY_ADMIN_TOKEN)
// 2. Legacy deployment variables (e.g., SHOPIFY_ADMIN_TOKEN)
// 3. config.toml
// 4. Built-in defaults
//
// A .env file in the working directory is loaded first; variables already
// present in the process environment are not overwritten.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return nil, fmt.Errorf("error binding %s: %w", key, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Shopify: ShopifyConfig{
			StoreDomain: v.GetString("shopify.store_domain"),
			AdminToken:  v.GetString("shopify.admin_token"),
			APIVersion:  v.GetString("shopify.api_version"),
			Endpoint:    v.GetString("shopify.endpoint"),
			Timeout:     v.GetDuration("shopify.timeout"),
			Retry: RetryConfig{
				MaxAttempts:    v.GetInt("shopify.retry.max_attempts"),
				MaxElapsed:     v.GetDuration("shopify.retry.max_elapsed"),
				ErrorDelay:     v.GetDuration("shopify.retry.error_delay"),
				ThrottleMargin: v.GetDuration("shopify.retry.throttle_margin"),
			},
		},
		ERP: ERPConfig{
			PricesURL:    v.GetString("erp.prices_url"),
			DiscountsURL: v.GetString("erp.discounts_url"),
			StockURL:     v.GetString("erp.stock_url"),
			CostURLs:     costURLs(v),
			Username:     v.GetString("erp.username"),
			Password:     v.GetString("erp.password"),
			Timeout:      v.GetDuration("erp.timeout"),
		},
		Auth: AuthConfig{
			InternalAPIKey: v.GetString("auth.internal_api_key"),
			CronHeader:     v.GetString("auth.cron_header"),
		},
		Sync: SyncConfig{
			RunTimeout: v.GetDuration("sync.run_timeout"),
			LockTTL:    v.GetDuration("sync.lock_ttl"),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("database.enabled"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
		},
		Storage: StorageConfig{
			Enabled:      v.GetBool("storage.enabled"),
			Endpoint:     v.GetString("storage.endpoint"),
			Region:       v.GetString("storage.region"),
			Bucket:       v.GetString("storage.bucket"),
			AccessKey:    v.GetString("storage.access_key"),
			SecretKey:    v.GetString("storage.secret_key"),
			UseSSL:       v.GetBool("storage.use_ssl"),
			UsePathStyle: v.GetBool("storage.use_path_style"),
			Prefix:       v.GetString("storage.prefix"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:   v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:  v.GetBool("scheduler.enabled"),
			Hour:     v.GetInt("scheduler.hour"),
			Minute:   v.GetInt("scheduler.minute"),
			Location: v.GetString("scheduler.location"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// costURLs reads erp.cost_urls, falling back to the two numbered legacy feeds
func costURLs(v *viper.Viper) []string {
	if urls := v.GetStringSlice("erp.cost_urls"); len(urls) > 0 {
		return urls
	}
	var urls []string
	for _, key := range []string{"erp.cost_url_1", "erp.cost_url_2"} {
		if u := v.GetString(key); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "erpsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Shopify.APIVersion == "" {
		cfg.Shopify.APIVersion = "2024-07"
	}
	if cfg.Shopify.Timeout == 0 {
		cfg.Shopify.Timeout = 60 * time.Second
	}
	if cfg.Shopify.Retry.ErrorDelay == 0 {
		cfg.Shopify.Retry.ErrorDelay = 5 * time.Second
	}
	if cfg.Shopify.Retry.ThrottleMargin == 0 {
		cfg.Shopify.Retry.ThrottleMargin = 100 * time.Millisecond
	}
	if cfg.ERP.Timeout == 0 {
		cfg.ERP.Timeout = 60 * time.Second
	}
	if cfg.Auth.CronHeader == "" {
		cfg.Auth.CronHeader = "x-vercel-cron"
	}
	if cfg.Sync.RunTimeout == 0 {
		cfg.Sync.RunTimeout = 15 * time.Minute
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = 30 * time.Minute
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "erpsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "erpsync:"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = "bulk-payloads"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// a sync runs inside the request, so the write timeout covers the run timeout
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = cfg.Sync.RunTimeout + 30*time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 30
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317" // Default gRPC endpoint
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

var structValidator = validator.New()

// validate performs validation on the configuration
func (c *Config) validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Scheduler.Location != "" {
		if _, err := time.LoadLocation(c.Scheduler.Location); err != nil {
			return fmt.Errorf("scheduler.location: %w", err)
		}
	}

	if c.App.IsProduction() {
		if c.Auth.InternalAPIKey == "" {
			return fmt.Errorf("auth.internal_api_key is required in production")
		}
		if len(c.Auth.InternalAPIKey) < 16 {
			return fmt.Errorf("auth.internal_api_key must be at least 16 characters in production")
		}
		if c.Database.Enabled {
			if c.Database.Password == "" {
				return fmt.Errorf("database.password is required in production")
			}
			if c.Database.SSLMode == "disable" {
				return fmt.Errorf("database.sslmode cannot be 'disable' in production")
			}
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SchedulerLocation returns the configured zone, UTC when unset
func (s *SchedulerConfig) SchedulerLocation() *time.Location {
	if s.Location == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}
