package shopifysync

import "encoding/json"

// Payload shapes from the Shopify Admin REST API. Monetary fields arrive as
// strings, so they are held as json.Number until converted to decimals.

type shopifyOrder struct {
	ID                  json.Number          `json:"id"`
	OrderNumber         json.Number          `json:"order_number"`
	Name                string               `json:"name"`
	Email               string               `json:"email"`
	FinancialStatus     string               `json:"financial_status"`
	FulfillmentStatus   *string              `json:"fulfillment_status"`
	Currency            string               `json:"currency"`
	TotalPrice          json.Number          `json:"total_price"`
	TotalLineItemsPrice json.Number          `json:"total_line_items_price"`
	SubtotalPrice       json.Number          `json:"subtotal_price"`
	TotalDiscounts      json.Number          `json:"total_discounts"`
	TotalTax            json.Number          `json:"total_tax"`
	ProcessedAt         string               `json:"processed_at"`
	CreatedAt           string               `json:"created_at"`
	ClosedAt            string               `json:"closed_at"`
	CancelledAt         string               `json:"cancelled_at"`
	CancelReason        string               `json:"cancel_reason"`
	Note                string               `json:"note"`
	Customer            *shopifyCustomer     `json:"customer"`
	LineItems           []shopifyLineItem    `json:"line_items"`
	Fulfillments        []shopifyFulfillment `json:"fulfillments"`
	Refunds             []shopifyRefund      `json:"refunds"`
	ShippingAddress     json.RawMessage      `json:"shipping_address"`
	BillingAddress      json.RawMessage      `json:"billing_address"`
}

type shopifyCustomer struct {
	ID             json.Number     `json:"id"`
	Email          string          `json:"email"`
	FirstName      string          `json:"first_name"`
	LastName       string          `json:"last_name"`
	Phone          string          `json:"phone"`
	VerifiedEmail  bool            `json:"verified_email"`
	State          string          `json:"state"`
	Tags           string          `json:"tags"`
	Note           string          `json:"note"`
	CreatedAt      string          `json:"created_at"`
	Addresses      json.RawMessage `json:"addresses"`
	DefaultAddress json.RawMessage `json:"default_address"`
}

type shopifyLineItem struct {
	ID                  json.Number                 `json:"id"`
	ProductID           json.Number                 `json:"product_id"`
	Title               string                      `json:"title"`
	Vendor              string                      `json:"vendor"`
	Sku                 string                      `json:"sku"`
	Quantity            int                         `json:"quantity"`
	Price               json.Number                 `json:"price"`
	FulfillmentStatus   *string                     `json:"fulfillment_status"`
	Properties          json.RawMessage             `json:"properties"`
	DiscountAllocations []shopifyDiscountAllocation `json:"discount_allocations"`
	TaxLines            []shopifyTaxLine            `json:"tax_lines"`
}

type shopifyDiscountAllocation struct {
	Amount    json.Number      `json:"amount"`
	AmountSet *shopifyMoneySet `json:"amount_set"`
}

type shopifyTaxLine struct {
	Title string      `json:"title"`
	Price json.Number `json:"price"`
	Rate  json.Number `json:"rate"`
}

type shopifyMoneySet struct {
	ShopMoney shopifyMoney `json:"shop_money"`
}

type shopifyMoney struct {
	Amount       json.Number `json:"amount"`
	CurrencyCode string      `json:"currency_code"`
}

type shopifyFulfillment struct {
	ID              json.Number       `json:"id"`
	Status          string            `json:"status"`
	TrackingCompany string            `json:"tracking_company"`
	TrackingNumber  string            `json:"tracking_number"`
	TrackingUrl     string            `json:"tracking_url"`
	CreatedAt       string            `json:"created_at"`
	UpdatedAt       string            `json:"updated_at"`
	LineItems       []shopifyLineItem `json:"line_items"`
}

type shopifyTransaction struct {
	ID          json.Number `json:"id"`
	Kind        string      `json:"kind"`
	Gateway     string      `json:"gateway"`
	Status      string      `json:"status"`
	Amount      json.Number `json:"amount"`
	Currency    string      `json:"currency"`
	ProcessedAt string      `json:"processed_at"`
}

type shopifyRefund struct {
	ID               json.Number              `json:"id"`
	Note             string                   `json:"note"`
	CreatedAt        string                   `json:"created_at"`
	ProcessedAt      string                   `json:"processed_at"`
	RefundLineItems  []shopifyRefundLineItem  `json:"refund_line_items"`
	OrderAdjustments []shopifyOrderAdjustment `json:"order_adjustments"`
	Transactions     json.RawMessage          `json:"transactions"`
}

type shopifyRefundLineItem struct {
	ID          json.Number      `json:"id"`
	LineItemID  json.Number      `json:"line_item_id"`
	Quantity    int              `json:"quantity"`
	RestockType string           `json:"restock_type"`
	Subtotal    json.Number      `json:"subtotal"`
	TotalTax    json.Number      `json:"total_tax"`
	SubtotalSet *shopifyMoneySet `json:"subtotal_set"`
	TotalTaxSet *shopifyMoneySet `json:"total_tax_set"`
	LineItem    *shopifyLineItem `json:"line_item"`
}

type shopifyOrderAdjustment struct {
	ID        json.Number      `json:"id"`
	Kind      string           `json:"kind"`
	Reason    string           `json:"reason"`
	Amount    json.Number      `json:"amount"`
	AmountSet *shopifyMoneySet `json:"amount_set"`
	TaxAmount json.Number      `json:"tax_amount"`
}

type shopifyFulfillmentOrder struct {
	ID        json.Number `json:"id"`
	OrderID   json.Number `json:"order_id"`
	Status    string      `json:"status"`
	LineItems []struct {
		ID         json.Number `json:"id"`
		LineItemID json.Number `json:"line_item_id"`
		Quantity   int         `json:"quantity"`
	} `json:"line_items"`
}

type shopifyLocation struct {
	ID     json.Number `json:"id"`
	Name   string      `json:"name"`
	Active bool        `json:"active"`
}

type shopifyCalculatedRefund struct {
	RefundLineItems []struct {
		LineItemID  json.Number `json:"line_item_id"`
		Quantity    int         `json:"quantity"`
		RestockType string      `json:"restock_type"`
	} `json:"refund_line_items"`
	Transactions []struct {
		ParentID json.Number `json:"parent_id"`
		Amount   json.Number `json:"amount"`
		Kind     string      `json:"kind"`
		Gateway  string      `json:"gateway"`
		Currency string      `json:"currency"`
	} `json:"transactions"`
	Shipping struct {
		Amount json.Number `json:"amount"`
	} `json:"shipping"`
}
