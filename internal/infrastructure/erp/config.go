package erp

import (
	"errors"
	"time"
)

// Default 1C HTTP service endpoints
const (
	DefaultPricesURL    = "https://crm.prostor.ae/tst/hs/Integration/ProstorDatabasePrices"
	DefaultDiscountsURL = "https://crm.prostor.ae/tst/hs/Integration/ProstorDatabaseDiscounts"
	DefaultStockURL     = "https://crm.prostor.ae/tst/hs/Integration/ProstorDatabaseStockBalances"
	DefaultCostURL1     = "https://crm.prostor.ae/prostor/hs/Integration/AlqitharaDatabaseCosts"
	DefaultCostURL2     = "https://crm.prostor.ae/tst/hs/Integration/ProstorDatabaseLocalCosts"

	DefaultTimeout = 60 * time.Second
)

// Errors for ERP configuration
var (
	ErrConfigMissingPricesURL    = errors.New("erp: prices url is required")
	ErrConfigMissingDiscountsURL = errors.New("erp: discounts url is required")
	ErrConfigMissingStockURL     = errors.New("erp: stock url is required")
	ErrConfigMissingCostURLs     = errors.New("erp: at least one cost url is required")
)

// Config holds the 1C feed endpoints and credentials
type Config struct {
	PricesURL    string
	DiscountsURL string
	StockURL     string
	// CostURLs are read in order; a later feed overrides an earlier one per barcode
	CostURLs []string
	Username string
	Password string
	Timeout  time.Duration
}

// DefaultConfig returns the production endpoints without credentials
func DefaultConfig() *Config {
	return &Config{
		PricesURL:    DefaultPricesURL,
		DiscountsURL: DefaultDiscountsURL,
		StockURL:     DefaultStockURL,
		CostURLs:     []string{DefaultCostURL1, DefaultCostURL2},
		Timeout:      DefaultTimeout,
	}
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	if c.PricesURL == "" {
		return ErrConfigMissingPricesURL
	}
	if c.DiscountsURL == "" {
		return ErrConfigMissingDiscountsURL
	}
	if c.StockURL == "" {
		return ErrConfigMissingStockURL
	}
	if len(c.CostURLs) == 0 {
		return ErrConfigMissingCostURLs
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return nil
}

// HasCredentials reports whether Basic auth is sent
func (c *Config) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}
