package config

import (
	"os"
	"strings"
)

// ShopifyFullSync controls whether a manual sync wipes all locally-stored
// order-derived tables before re-importing (full reset) or runs incrementally.
//
// Set via env:
// - SHOPIFY_FULL_SYNC=true (default)
func ShopifyFullSync() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SHOPIFY_FULL_SYNC")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// RefundDiscountMode decides whether line-item discount allocations adjust
// refund totals. The business rule is unsettled upstream, so it is an explicit
// named setting instead of a silent choice.
//
// Set via env:
// - SHOPIFY_REFUND_INCLUDE_DISCOUNTS="exclude" (default) or "subtract"
type RefundDiscountMode string

const (
	RefundDiscountExclude  RefundDiscountMode = "exclude"
	RefundDiscountSubtract RefundDiscountMode = "subtract"
)

func GetRefundDiscountMode() RefundDiscountMode {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("SHOPIFY_REFUND_INCLUDE_DISCOUNTS")))
	if v == string(RefundDiscountSubtract) {
		return RefundDiscountSubtract
	}
	return RefundDiscountExclude
}
