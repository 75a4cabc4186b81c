package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Financial statuses reported by Shopify that count as revenue.
const (
	FinancialStatusPending           = "pending"
	FinancialStatusPaid              = "paid"
	FinancialStatusPartiallyPaid     = "partially_paid"
	FinancialStatusPartiallyRefunded = "partially_refunded"
	FinancialStatusRefunded          = "refunded"
	FinancialStatusVoided            = "voided"
)

// PaidLikeStatuses is the financial-status set that marks an order as paid
// and includes it in revenue reporting.
var PaidLikeStatuses = []string{
	FinancialStatusPaid,
	FinancialStatusPartiallyRefunded,
	FinancialStatusRefunded,
}

func IsPaidLikeStatus(financialStatus string) bool {
	for _, s := range PaidLikeStatuses {
		if financialStatus == s {
			return true
		}
	}
	return false
}

type Order struct {
	ID             int    `gorm:"primary_key" json:"id"`
	ShopifyOrderId string `gorm:"uniqueIndex;size:64;not null" json:"shopify_order_id"`
	OrderNumber    string `gorm:"size:64;index" json:"order_number"`
	CustomerId     *int   `gorm:"index" json:"customer_id"`
	Email          string `gorm:"size:255;index" json:"email"`
	// Shopify-reported payment state: pending, paid, partially_paid,
	// partially_refunded, refunded, voided.
	FinancialStatus string `gorm:"size:30;index" json:"financial_status"`
	// Nil means unfulfilled.
	FulfillmentStatus *string `gorm:"size:30;index" json:"fulfillment_status"`
	ShippingStatus    *string `gorm:"size:30;index" json:"shipping_status"`
	IsPaid            bool    `gorm:"default:false;index" json:"is_paid"`

	TotalPrice     decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"total_price"`
	SubtotalPrice  decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"subtotal_price"`
	TotalDiscounts decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"total_discounts"`
	TotalTax       decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"total_tax"`
	// Derived: always Σ of this order's refund totals, never taken from Shopify.
	TotalRefunds decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"total_refunds"`
	Currency     string          `gorm:"size:3;default:'USD'" json:"currency"`

	// Shopify's authoritative order timestamp, distinct from the local created_at.
	ProcessedAt  *time.Time `gorm:"index" json:"processed_at"`
	ClosedAt     *time.Time `json:"closed_at"`
	CancelledAt  *time.Time `json:"cancelled_at"`
	CancelReason string     `gorm:"size:100" json:"cancel_reason"`

	ShippingAddress []byte `gorm:"type:json" json:"shipping_address"`
	BillingAddress  []byte `gorm:"type:json" json:"billing_address"`
	Note            string `gorm:"type:text" json:"note"`

	Customer     *Customer      `json:"customer"`
	OrderItems   []*OrderItem   `json:"order_items"`
	Fulfillments []*Fulfillment `json:"fulfillments"`
	Payments     []*Payment     `json:"payments"`
	Refunds      []*Refund      `json:"refunds"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	OrderId           int             `gorm:"index;not null" json:"order_id"`
	ProductId         *int            `gorm:"index" json:"product_id"`
	ShopifyLineItemId string          `gorm:"size:64;index" json:"shopify_line_item_id"`
	Title             string          `gorm:"size:255;not null" json:"title"`
	Sku               string          `gorm:"size:100" json:"sku"`
	Quantity          int             `gorm:"default:1" json:"quantity"`
	Price             decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"price"`
	// price*quantity - discount_allocation + tax
	Total              decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"total"`
	DiscountAllocation decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"discount_allocation"`
	Properties         []byte          `gorm:"type:json" json:"properties"`
	FulfillmentStatus  *string         `gorm:"size:30" json:"fulfillment_status"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

var ErrOrderNotFound = errors.New("order not found")

func GetOrderByShopifyId(tx *gorm.DB, ctx context.Context, shopifyOrderId string) (*Order, error) {
	var order Order
	err := tx.WithContext(ctx).Where("shopify_order_id = ?", shopifyOrderId).Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func GetOrder(tx *gorm.DB, ctx context.Context, id int) (*Order, error) {
	var order Order
	err := tx.WithContext(ctx).
		Preload("Customer").
		Preload("OrderItems").
		Preload("Fulfillments").
		Preload("Payments").
		Preload("Refunds").
		Preload("Refunds.RefundItems").
		Preload("Refunds.RefundAdjustments").
		Where("id = ?", id).Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// DeleteOrderCascade removes an order and every row hanging off it:
// items, fulfillments, payments, refunds and their sub-rows. Runs inside the
// caller's transaction so a partial delete can never be observed.
func DeleteOrderCascade(tx *gorm.DB, ctx context.Context, order *Order) error {
	var refundIds []int
	if err := tx.WithContext(ctx).Model(&Refund{}).
		Where("order_id = ?", order.ID).
		Pluck("id", &refundIds).Error; err != nil {
		return err
	}

	if len(refundIds) > 0 {
		if err := tx.WithContext(ctx).Where("refund_id IN ?", refundIds).Delete(&RefundItem{}).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Where("refund_id IN ?", refundIds).Delete(&RefundAdjustment{}).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Where("order_id = ?", order.ID).Delete(&Refund{}).Error; err != nil {
			return err
		}
	}

	if err := tx.WithContext(ctx).Where("order_id = ?", order.ID).Delete(&Payment{}).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Where("order_id = ?", order.ID).Delete(&Fulfillment{}).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Where("order_id = ?", order.ID).Delete(&OrderItem{}).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Delete(order).Error
}
