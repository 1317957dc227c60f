package catalogsync

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SourceReader reads the ERP feeds
type SourceReader interface {
	// FetchProductData returns prices, discounts and stock merged per barcode
	FetchProductData(ctx context.Context) (SourceRecords, error)
	// FetchCosts returns unit costs merged across the priority-ordered cost feeds
	FetchCosts(ctx context.Context) (map[Barcode]decimal.Decimal, error)
}

// CatalogReader reads the storefront catalog
type CatalogReader interface {
	// FetchProducts returns every product with its variants
	FetchProducts(ctx context.Context) ([]RemoteProduct, error)
	// FetchVariantCosts returns the inventory item and unit cost of every barcoded variant
	FetchVariantCosts(ctx context.Context) (CostIndex, error)
}

// BulkSubmitter launches bulk mutations on the storefront. Each call is an
// independent submission and returns as soon as the operation is accepted.
type BulkSubmitter interface {
	SubmitPriceChanges(ctx context.Context, changes []PriceChange) (*BulkOperation, error)
	SubmitStatusChanges(ctx context.Context, changes []StatusChange) (*BulkOperation, error)
	SubmitCostChanges(ctx context.Context, changes []CostChange) (*BulkOperation, error)
}

// RunLock serializes runs of the same kind across processes.
// Acquire returns ErrSyncInProgress when another holder owns key.
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Release(ctx context.Context, key, token string) error
}
