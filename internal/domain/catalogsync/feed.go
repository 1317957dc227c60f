package catalogsync

import "github.com/shopspring/decimal"

// FeedKind names the SourceRecord field an ERP feed populates
type FeedKind string

const (
	FeedKindPrice    FeedKind = "price"
	FeedKindDiscount FeedKind = "discount"
	FeedKindStock    FeedKind = "stock"
	FeedKindCost     FeedKind = "cost"
)

// IsValid returns true if the feed kind is known
func (k FeedKind) IsValid() bool {
	switch k {
	case FeedKindPrice, FeedKindDiscount, FeedKindStock, FeedKindCost:
		return true
	default:
		return false
	}
}

// String returns the string representation of FeedKind
func (k FeedKind) String() string {
	return string(k)
}

// Feed is one ERP endpoint's barcode to value map
type Feed struct {
	Kind   FeedKind
	Source string
	Values map[Barcode]decimal.Decimal
}

// MergeFeeds folds feeds into SourceRecords in the given order.
// A later feed overrides an earlier one for the same barcode and field only;
// the other fields of the record are kept.
func MergeFeeds(feeds ...Feed) SourceRecords {
	records := make(SourceRecords)
	for _, feed := range feeds {
		for barcode, value := range feed.Values {
			record := records[barcode]
			v := decimal.NewNullDecimal(value)
			switch feed.Kind {
			case FeedKindPrice:
				record.BasePrice = v
			case FeedKindDiscount:
				record.DiscountPrice = v
			case FeedKindStock:
				record.Stock = v
			case FeedKindCost:
				record.Cost = v
			default:
				continue
			}
			records[barcode] = record
		}
	}
	return records
}
