package catalogsync

// ChangeKind identifies a mutation stream
type ChangeKind string

const (
	ChangeKindPrice  ChangeKind = "price"
	ChangeKindStatus ChangeKind = "status"
	ChangeKindCost   ChangeKind = "cost"
)

// String returns the string representation of ChangeKind
func (k ChangeKind) String() string {
	return string(k)
}

// PriceChange rewrites a variant's price and compare-at price.
// A nil CompareAtPrice clears the compare-at price.
type PriceChange struct {
	VariantID      string
	Price          string
	CompareAtPrice *string
}

// StatusChange moves a product between ACTIVE and DRAFT
type StatusChange struct {
	ProductID string
	Status    ProductStatus
}

// CostChange rewrites an inventory item's unit cost
type CostChange struct {
	InventoryItemID string
	Cost            string
}

// BulkOperation is the handle of a bulk mutation accepted by the storefront.
// Its terminal outcome is observed out of band.
type BulkOperation struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CatalogChanges is the result of price and availability reconciliation.
// DiscountsAboveBase lists matched barcodes whose discount exceeds the base
// price.
type CatalogChanges struct {
	Prices             []PriceChange
	Statuses           []StatusChange
	DiscountsAboveBase []Barcode
}

// IsEmpty reports whether nothing needs to be written
func (c CatalogChanges) IsEmpty() bool {
	return len(c.Prices) == 0 && len(c.Statuses) == 0
}

// CostChanges is the result of cost reconciliation. Unmatched lists ERP
// barcodes that have no variant in the storefront catalog.
type CostChanges struct {
	Changes   []CostChange
	Unmatched []Barcode
}
