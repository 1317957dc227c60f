package shopify

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultAPIVersion is the Admin API version used when none is configured
	DefaultAPIVersion = "2024-07"
	// DefaultTimeout bounds a single HTTP round trip
	DefaultTimeout = 60 * time.Second
)

// Errors for Shopify configuration
var (
	ErrConfigMissingStoreDomain = errors.New("shopify: store domain is required")
	ErrConfigMissingAdminToken  = errors.New("shopify: admin access token is required")
)

// Config holds configuration for the Shopify Admin GraphQL API
type Config struct {
	// StoreDomain is the shop's myshopify domain, e.g. "prostor.myshopify.com"
	StoreDomain string
	// AdminToken is the Admin API access token
	AdminToken string
	// APIVersion is the Admin API version, e.g. "2024-07"
	APIVersion string
	// Endpoint overrides the GraphQL URL derived from StoreDomain (used by tests and proxies)
	Endpoint string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// Retry bounds throttle and rate-limit retries
	Retry RetryPolicy
}

// NewConfig creates a configuration with defaults
func NewConfig(storeDomain, adminToken string) *Config {
	return &Config{
		StoreDomain: storeDomain,
		AdminToken:  adminToken,
		APIVersion:  DefaultAPIVersion,
		Timeout:     DefaultTimeout,
		Retry:       DefaultRetryPolicy(),
	}
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if c.StoreDomain == "" && c.Endpoint == "" {
		return ErrConfigMissingStoreDomain
	}
	if c.AdminToken == "" {
		return ErrConfigMissingAdminToken
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	c.Retry = c.Retry.withDefaults()
	return nil
}

// GraphQLURL returns the Admin GraphQL endpoint
func (c *Config) GraphQLURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	domain := strings.TrimSuffix(strings.TrimPrefix(c.StoreDomain, "https://"), "/")
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", domain, c.APIVersion)
}
