package shopifysync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestBuildOrder_DerivedFields(t *testing.T) {
	fulfillment := "partial"
	payload := &shopifyOrder{
		ID:                  json.Number("450789469"),
		OrderNumber:         json.Number("1001"),
		Name:                "#1001",
		Email:               " buyer@example.com ",
		FinancialStatus:     "paid",
		FulfillmentStatus:   &fulfillment,
		Currency:            "usd",
		TotalPrice:          json.Number("100.00"),
		TotalLineItemsPrice: json.Number("95.00"),
		SubtotalPrice:       json.Number("90.00"),
		TotalDiscounts:      json.Number("-10.00"),
		TotalTax:            json.Number("5.00"),
		ProcessedAt:         "2024-03-01T10:00:00Z",
		CreatedAt:           "2024-03-01T09:59:00Z",
	}

	customerId := 7
	order := buildOrder(payload, &customerId)

	if order.ShopifyOrderId != "450789469" {
		t.Fatalf("shopify order id: %s", order.ShopifyOrderId)
	}
	if order.OrderNumber != "1001" {
		t.Fatalf("order number: %s", order.OrderNumber)
	}
	if order.Email != "buyer@example.com" {
		t.Fatalf("email: %q", order.Email)
	}
	if !order.IsPaid {
		t.Fatal("paid order must be flagged is_paid")
	}
	if order.SubtotalPrice.String() != "95" {
		t.Fatalf("subtotal must come from total_line_items_price, got %s", order.SubtotalPrice.String())
	}
	if order.TotalDiscounts.String() != "10" {
		t.Fatalf("discounts must be stored positive, got %s", order.TotalDiscounts.String())
	}
	if order.Currency != "USD" {
		t.Fatalf("currency: %s", order.Currency)
	}
	if order.ShippingStatus == nil || *order.ShippingStatus != "partial" {
		t.Fatalf("shipping status must mirror fulfillment status")
	}
	if order.ProcessedAt == nil || order.ProcessedAt.UTC().Hour() != 10 {
		t.Fatal("processed_at not parsed")
	}
}

func TestBuildOrder_Fallbacks(t *testing.T) {
	payload := &shopifyOrder{
		ID:              json.Number("42"),
		Name:            "#2042",
		FinancialStatus: "pending",
		SubtotalPrice:   json.Number("30.00"),
		CreatedAt:       "2024-05-02T08:30:00Z",
	}

	order := buildOrder(payload, nil)

	if order.OrderNumber != "2042" {
		t.Fatalf("order number must fall back to name without #, got %s", order.OrderNumber)
	}
	if order.SubtotalPrice.String() != "30" {
		t.Fatalf("subtotal must fall back to subtotal_price, got %s", order.SubtotalPrice.String())
	}
	if order.Currency != "USD" {
		t.Fatalf("currency must default to USD, got %s", order.Currency)
	}
	if order.IsPaid {
		t.Fatal("pending order must not be is_paid")
	}
	if order.ProcessedAt == nil {
		t.Fatal("processed_at must fall back to created_at")
	}
	if order.CustomerId != nil {
		t.Fatal("customer id must stay nil for guest orders")
	}
}

func TestLineItemDiscount_SumsAbsoluteAllocations(t *testing.T) {
	li := shopifyLineItem{
		DiscountAllocations: []shopifyDiscountAllocation{
			{Amount: json.Number("2.50")},
			{Amount: json.Number("-1.50")},
			{AmountSet: &shopifyMoneySet{ShopMoney: shopifyMoney{Amount: json.Number("1.00")}}},
		},
	}

	if got := lineItemDiscount(li); got.String() != "5" {
		t.Fatalf("expected 5.00, got %s", got.String())
	}
}

func TestMoneyFromNumberOrSet(t *testing.T) {
	set := &shopifyMoneySet{ShopMoney: shopifyMoney{Amount: json.Number("7.25")}}

	if got := moneyFromNumberOrSet(json.Number("3.10"), set); got.String() != "3.1" {
		t.Fatalf("direct field must win, got %s", got.String())
	}
	if got := moneyFromNumberOrSet(json.Number(""), set); got.String() != "7.25" {
		t.Fatalf("expected fallback to amount set, got %s", got.String())
	}
	if got := moneyFromNumberOrSet(json.Number(""), nil); !got.IsZero() {
		t.Fatalf("expected zero, got %s", got.String())
	}
}

func TestAdjustmentAmount_PrefersShopMoneyAndKeepsSign(t *testing.T) {
	withSet := shopifyOrderAdjustment{
		Amount:    json.Number("9.99"),
		AmountSet: &shopifyMoneySet{ShopMoney: shopifyMoney{Amount: json.Number("-4.50")}},
	}
	if got := adjustmentAmount(withSet); got.String() != "-4.5" {
		t.Fatalf("expected -4.50 from amount set, got %s", got.String())
	}

	direct := shopifyOrderAdjustment{Amount: json.Number("-2.00")}
	if got := adjustmentAmount(direct); got.String() != "-2" {
		t.Fatalf("expected -2.00, got %s", got.String())
	}
}

func TestFirstGateway(t *testing.T) {
	cases := []struct {
		name         string
		transactions []shopifyTransaction
		want         string
	}{
		{"empty", nil, ""},
		{"first wins", []shopifyTransaction{
			{Gateway: "shopify_payments"},
			{Gateway: "manual"},
		}, "shopify_payments"},
		{"skips blank", []shopifyTransaction{
			{Gateway: "  "},
			{Gateway: "manual"},
		}, "manual"},
	}
	for _, c := range cases {
		if got := firstGateway(c.transactions); got != c.want {
			t.Fatalf("%s: expected %q, got %q", c.name, c.want, got)
		}
	}
}

func TestUpsertOrder_RefundFetchFailureAbortsWithoutEmbeddedRefunds(t *testing.T) {
	gw := &fakeGateway{refundsErr: errors.New("shopify is down")}
	payload := &shopifyOrder{ID: json.Number("9001")}

	err := UpsertOrder(context.Background(), nil, gw, payload, nil)
	if err == nil {
		t.Fatal("expected refund fetch failure to abort the order")
	}
	if !errors.Is(err, gw.refundsErr) {
		t.Fatalf("expected the fetch error to propagate, got %v", err)
	}
}

func TestRefundItemDiscount_ProRatesByQuantity(t *testing.T) {
	line := &shopifyLineItem{
		Quantity: 4,
		DiscountAllocations: []shopifyDiscountAllocation{
			{Amount: json.Number("8.00")},
		},
	}

	rli := shopifyRefundLineItem{Quantity: 1, LineItem: line}
	if got := refundItemDiscount(rli); got.String() != "2" {
		t.Fatalf("expected 2.00 for one of four units, got %s", got.String())
	}

	rli.Quantity = 3
	if got := refundItemDiscount(rli); got.String() != "6" {
		t.Fatalf("expected 6.00 for three units, got %s", got.String())
	}

	if got := refundItemDiscount(shopifyRefundLineItem{Quantity: 1}); !got.IsZero() {
		t.Fatalf("expected zero without embedded line item, got %s", got.String())
	}
}
