package catalogsync

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatDecimal renders d the way the storefront reports amounts:
// plain notation without trailing zeros ("80", "12.5").
func FormatDecimal(d decimal.Decimal) string {
	return d.String()
}

// CanonicalDecimal normalizes a decimal string so that "100.00" and "100"
// compare equal. Input that does not parse is returned unchanged.
func CanonicalDecimal(s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return FormatDecimal(d)
}

// CanonicalDecimalPtr is CanonicalDecimal for nullable amounts.
func CanonicalDecimalPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := CanonicalDecimal(*s)
	return &v
}

func equalAmounts(a, b *string) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return CanonicalDecimal(*a) == CanonicalDecimal(*b)
	}
}
