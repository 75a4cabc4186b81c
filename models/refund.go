package models

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
)

type Refund struct {
	ID              int    `gorm:"primary_key" json:"id"`
	OrderId         int    `gorm:"index;not null" json:"order_id"`
	ShopifyRefundId string `gorm:"uniqueIndex;size:64" json:"shopify_refund_id"`
	// Inherited from the order's first payment; refund payloads rarely name one.
	Gateway string `gorm:"size:100" json:"gateway"`
	Note    string `gorm:"type:text" json:"note"`
	// Derived from items and adjustments, never taken from the payload.
	TotalAmount decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"total_amount"`
	TotalTax    decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"total_tax"`
	// Raw transactions blob from the refund payload, kept for audit.
	Transactions     []byte     `gorm:"type:json" json:"transactions"`
	ProcessedAt      *time.Time `json:"processed_at"`
	ShopifyCreatedAt *time.Time `json:"shopify_created_at"`

	RefundItems       []*RefundItem       `json:"refund_items"`
	RefundAdjustments []*RefundAdjustment `json:"refund_adjustments"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type RefundItem struct {
	ID       int `gorm:"primary_key" json:"id"`
	RefundId int `gorm:"index;not null" json:"refund_id"`
	// Back-links to the refunded order item, nil when the line item no longer
	// resolves locally.
	OrderItemId       *int            `gorm:"index" json:"order_item_id"`
	ProductId         *int            `gorm:"index" json:"product_id"`
	ShopifyLineItemId string          `gorm:"size:64" json:"shopify_line_item_id"`
	Quantity          int             `gorm:"default:1" json:"quantity"`
	Subtotal          decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"subtotal"`
	TotalTax          decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"total_tax"`
	// Discount share attributed to the refunded units. Only consulted when
	// SHOPIFY_REFUND_INCLUDE_DISCOUNTS=subtract.
	DiscountAllocation decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"discount_allocation"`
	RestockType        string          `gorm:"size:30" json:"restock_type"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type RefundAdjustment struct {
	ID                  int    `gorm:"primary_key" json:"id"`
	RefundId            int    `gorm:"index;not null" json:"refund_id"`
	ShopifyAdjustmentId string `gorm:"size:64;index" json:"shopify_adjustment_id"`
	Kind                string `gorm:"size:50" json:"kind"`
	Reason              string `gorm:"size:255" json:"reason"`
	// Signed as reported by Shopify: positive reduces the refund value.
	Amount    decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"amount"`
	TaxAmount decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"tax_amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ComputeRefundAmount derives a refund's total from its line items and
// adjustments:
//
//	total = round(Σ item.subtotal - Σ adjustment.amount, 2)
//
// clamped at zero so a refund can never report a negative value. When mode is
// RefundDiscountSubtract, each item's discount allocation is subtracted from
// its subtotal first.
func ComputeRefundAmount(items []*RefundItem, adjustments []*RefundAdjustment, mode config.RefundDiscountMode) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal)
		if mode == config.RefundDiscountSubtract {
			total = total.Sub(item.DiscountAllocation)
		}
	}
	for _, adj := range adjustments {
		total = total.Sub(adj.Amount)
	}
	total = total.Round(2)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// RecomputeRefundTotals restamps every refund total for an order and the
// order's total_refunds from the stored rows. Called after any write that
// touches refund rows so the derived amounts can never drift from the data.
func RecomputeRefundTotals(tx *gorm.DB, ctx context.Context, orderId int) (decimal.Decimal, error) {
	mode := config.GetRefundDiscountMode()

	var refunds []*Refund
	err := tx.WithContext(ctx).
		Preload("RefundItems").
		Preload("RefundAdjustments").
		Where("order_id = ?", orderId).
		Find(&refunds).Error
	if err != nil {
		return decimal.Zero, err
	}

	orderTotal := decimal.Zero
	for _, refund := range refunds {
		amount := ComputeRefundAmount(refund.RefundItems, refund.RefundAdjustments, mode)
		if !amount.Equal(refund.TotalAmount) {
			err = tx.WithContext(ctx).Model(refund).
				Update("total_amount", amount).Error
			if err != nil {
				return decimal.Zero, err
			}
		}
		orderTotal = orderTotal.Add(amount)
	}

	orderTotal = orderTotal.Round(2)
	err = tx.WithContext(ctx).Model(&Order{}).
		Where("id = ?", orderId).
		Update("total_refunds", orderTotal).Error
	if err != nil {
		return decimal.Zero, err
	}
	return orderTotal, nil
}
