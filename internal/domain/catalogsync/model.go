package catalogsync

import (
	"github.com/shopspring/decimal"
)

// Barcode identifies a sellable unit in both the ERP and the storefront.
type Barcode string

// String returns the barcode value
func (b Barcode) String() string {
	return string(b)
}

// IsEmpty reports whether the barcode is missing
func (b Barcode) IsEmpty() bool {
	return b == ""
}

// ---------------------------------------------------------------------------
// SourceRecord is the ERP truth for one barcode
// ---------------------------------------------------------------------------

// SourceRecord holds the merged ERP values for one barcode. Every field is
// optional because each ERP feed only covers part of the record.
type SourceRecord struct {
	BasePrice     decimal.NullDecimal
	DiscountPrice decimal.NullDecimal
	Stock         decimal.NullDecimal
	Cost          decimal.NullDecimal
}

// InStock reports whether the record carries a positive stock balance.
// Zero, negative and missing balances are all out of stock.
func (r SourceRecord) InStock() bool {
	return r.Stock.Valid && r.Stock.Decimal.IsPositive()
}

// HasDiscount reports whether a positive discount price applies. A discount
// only applies on top of a base price.
func (r SourceRecord) HasDiscount() bool {
	return r.BasePrice.Valid && r.DiscountPrice.Valid && r.DiscountPrice.Decimal.IsPositive()
}

// DiscountAboveBase reports whether an applied discount exceeds the base
// price. Such a discount is still applied with the base as compare-at.
func (r SourceRecord) DiscountAboveBase() bool {
	return r.HasDiscount() && r.DiscountPrice.Decimal.GreaterThan(r.BasePrice.Decimal)
}

// EffectivePrice returns the selling price and the compare-at price derived
// from the record. ok is false when no positive base price is known.
func (r SourceRecord) EffectivePrice() (price string, compareAt *string, ok bool) {
	if !r.BasePrice.Valid || !r.BasePrice.Decimal.IsPositive() {
		return "", nil, false
	}
	base := FormatDecimal(r.BasePrice.Decimal)
	if r.HasDiscount() {
		return FormatDecimal(r.DiscountPrice.Decimal), &base, true
	}
	return base, nil, true
}

// SourceRecords indexes merged ERP records by barcode
type SourceRecords map[Barcode]SourceRecord

// Costs extracts the barcodes that carry a cost value
func (s SourceRecords) Costs() map[Barcode]decimal.Decimal {
	costs := make(map[Barcode]decimal.Decimal)
	for barcode, record := range s {
		if record.Cost.Valid {
			costs[barcode] = record.Cost.Decimal
		}
	}
	return costs
}

// ---------------------------------------------------------------------------
// Remote catalog state
// ---------------------------------------------------------------------------

// ProductStatus is the storefront lifecycle status of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "ACTIVE"
	ProductStatusDraft    ProductStatus = "DRAFT"
	ProductStatusArchived ProductStatus = "ARCHIVED"
)

// IsValid returns true if the status is one the storefront reports
func (s ProductStatus) IsValid() bool {
	switch s {
	case ProductStatusActive, ProductStatusDraft, ProductStatusArchived:
		return true
	default:
		return false
	}
}

// IsAssignable returns true if synchronization may set or replace this status.
// Archived products are left alone.
func (s ProductStatus) IsAssignable() bool {
	return s == ProductStatusActive || s == ProductStatusDraft
}

// String returns the string representation of ProductStatus
func (s ProductStatus) String() string {
	return string(s)
}

// RemoteVariant is the storefront's current state of one variant.
// Amounts are canonical decimal strings (see CanonicalDecimal).
type RemoteVariant struct {
	ID             string
	Barcode        Barcode
	Price          string
	CompareAtPrice *string
	ProductID      string
	ProductStatus  ProductStatus
}

// RemoteProduct is the storefront's current state of one product
type RemoteProduct struct {
	ID       string
	Status   ProductStatus
	Variants []RemoteVariant
}

// VariantCost links a barcode to the inventory item holding its unit cost
type VariantCost struct {
	InventoryItemID string
	UnitCost        *string
}

// CostIndex maps barcodes to inventory items
type CostIndex map[Barcode]VariantCost
