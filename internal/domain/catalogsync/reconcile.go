package catalogsync

import (
	"sort"

	"github.com/shopspring/decimal"
)

// ReconcileCatalog compares ERP records against the storefront catalog and
// returns the price and status changes needed to converge them.
//
// A variant without a barcode, or whose barcode has no record, contributes
// neither a price change nor stock to its product. A product is ACTIVE when
// any of its variants is in stock and DRAFT otherwise; archived products are
// never touched. Changes are sorted by target ID.
func ReconcileCatalog(records SourceRecords, products []RemoteProduct) CatalogChanges {
	var changes CatalogChanges
	inverted := make(map[Barcode]struct{})

	for _, product := range products {
		inStock := false

		for _, variant := range product.Variants {
			if variant.Barcode.IsEmpty() {
				continue
			}
			record, ok := records[variant.Barcode]
			if !ok {
				continue
			}
			if record.InStock() {
				inStock = true
			}
			if record.DiscountAboveBase() {
				inverted[variant.Barcode] = struct{}{}
			}
			if change, ok := priceChangeFor(variant, record); ok {
				changes.Prices = append(changes.Prices, change)
			}
		}

		if change, ok := statusChangeFor(product, inStock); ok {
			changes.Statuses = append(changes.Statuses, change)
		}
	}

	sort.SliceStable(changes.Prices, func(i, j int) bool {
		return changes.Prices[i].VariantID < changes.Prices[j].VariantID
	})
	sort.SliceStable(changes.Statuses, func(i, j int) bool {
		return changes.Statuses[i].ProductID < changes.Statuses[j].ProductID
	})
	for barcode := range inverted {
		changes.DiscountsAboveBase = append(changes.DiscountsAboveBase, barcode)
	}
	sort.Slice(changes.DiscountsAboveBase, func(i, j int) bool {
		return changes.DiscountsAboveBase[i] < changes.DiscountsAboveBase[j]
	})

	return changes
}

func priceChangeFor(variant RemoteVariant, record SourceRecord) (PriceChange, bool) {
	price, compareAt, ok := record.EffectivePrice()
	if !ok {
		return PriceChange{}, false
	}
	if CanonicalDecimal(variant.Price) == price && equalAmounts(compareAt, variant.CompareAtPrice) {
		return PriceChange{}, false
	}
	return PriceChange{
		VariantID:      variant.ID,
		Price:          price,
		CompareAtPrice: compareAt,
	}, true
}

func statusChangeFor(product RemoteProduct, inStock bool) (StatusChange, bool) {
	if !product.Status.IsAssignable() {
		return StatusChange{}, false
	}
	desired := ProductStatusDraft
	if inStock {
		desired = ProductStatusActive
	}
	if desired == product.Status {
		return StatusChange{}, false
	}
	return StatusChange{ProductID: product.ID, Status: desired}, true
}

// ReconcileCosts compares ERP costs against the storefront's unit costs.
// Barcodes missing from the catalog are reported in Unmatched (sorted) and
// produce no change.
func ReconcileCosts(costs map[Barcode]decimal.Decimal, index CostIndex) CostChanges {
	barcodes := make([]Barcode, 0, len(costs))
	for barcode := range costs {
		barcodes = append(barcodes, barcode)
	}
	sort.Slice(barcodes, func(i, j int) bool { return barcodes[i] < barcodes[j] })

	result := CostChanges{}
	for _, barcode := range barcodes {
		item, ok := index[barcode]
		if !ok {
			result.Unmatched = append(result.Unmatched, barcode)
			continue
		}
		cost := FormatDecimal(costs[barcode])
		if item.UnitCost != nil && CanonicalDecimal(*item.UnitCost) == cost {
			continue
		}
		result.Changes = append(result.Changes, CostChange{
			InventoryItemID: item.InventoryItemID,
			Cost:            cost,
		})
	}

	sort.SliceStable(result.Changes, func(i, j int) bool {
		return result.Changes[i].InventoryItemID < result.Changes[j].InventoryItemID
	})

	return result
}
