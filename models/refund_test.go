package models

import (
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestComputeRefundAmount_ItemMinusAdjustment(t *testing.T) {
	items := []*RefundItem{
		{Subtotal: dec(t, "20.00")},
	}
	adjustments := []*RefundAdjustment{
		{Amount: dec(t, "5.00")},
	}

	got := ComputeRefundAmount(items, adjustments, config.RefundDiscountExclude)
	if got.String() != "15" {
		t.Fatalf("expected 15.00, got %s", got.String())
	}
}

func TestComputeRefundAmount_NeverNegative(t *testing.T) {
	cases := []struct {
		name        string
		items       []*RefundItem
		adjustments []*RefundAdjustment
	}{
		{
			name:        "adjustment exceeds subtotal",
			items:       []*RefundItem{{Subtotal: dec(t, "10.00")}},
			adjustments: []*RefundAdjustment{{Amount: dec(t, "25.00")}},
		},
		{
			name:        "no items, positive adjustment",
			adjustments: []*RefundAdjustment{{Amount: dec(t, "3.50")}},
		},
	}
	for _, tc := range cases {
		got := ComputeRefundAmount(tc.items, tc.adjustments, config.RefundDiscountExclude)
		if got.IsNegative() {
			t.Fatalf("%s: expected non-negative, got %s", tc.name, got.String())
		}
		if !got.IsZero() {
			t.Fatalf("%s: expected clamp to zero, got %s", tc.name, got.String())
		}
	}
}

func TestComputeRefundAmount_NegativeAdjustmentIncreasesTotal(t *testing.T) {
	items := []*RefundItem{
		{Subtotal: dec(t, "20.00")},
	}
	adjustments := []*RefundAdjustment{
		{Amount: dec(t, "-5.00")},
	}

	got := ComputeRefundAmount(items, adjustments, config.RefundDiscountExclude)
	if got.String() != "25" {
		t.Fatalf("expected 25.00, got %s", got.String())
	}
}

func TestComputeRefundAmount_RoundsToTwoPlaces(t *testing.T) {
	items := []*RefundItem{
		{Subtotal: dec(t, "10.005")},
		{Subtotal: dec(t, "0.011")},
	}

	got := ComputeRefundAmount(items, nil, config.RefundDiscountExclude)
	if got.String() != "10.02" {
		t.Fatalf("expected 10.02, got %s", got.String())
	}
}

func TestComputeRefundAmount_SubtractModeUsesItemDiscounts(t *testing.T) {
	items := []*RefundItem{
		{Subtotal: dec(t, "20.00"), DiscountAllocation: dec(t, "2.00")},
	}
	adjustments := []*RefundAdjustment{
		{Amount: dec(t, "5.00")},
	}

	exclude := ComputeRefundAmount(items, adjustments, config.RefundDiscountExclude)
	if exclude.String() != "15" {
		t.Fatalf("exclude mode: expected 15.00, got %s", exclude.String())
	}

	subtract := ComputeRefundAmount(items, adjustments, config.RefundDiscountSubtract)
	if subtract.String() != "13" {
		t.Fatalf("subtract mode: expected 13.00, got %s", subtract.String())
	}
}

func TestComputeRefundAmount_MultipleItemsAndAdjustments(t *testing.T) {
	items := []*RefundItem{
		{Subtotal: dec(t, "20.00")},
		{Subtotal: dec(t, "14.50")},
	}
	adjustments := []*RefundAdjustment{
		{Amount: dec(t, "5.00")},
		{Amount: dec(t, "2.25")},
	}

	got := ComputeRefundAmount(items, adjustments, config.RefundDiscountExclude)
	if got.String() != "27.25" {
		t.Fatalf("expected 27.25, got %s", got.String())
	}
}
