package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction kinds from the Shopify transactions endpoint that represent
// money movement toward the merchant.
var PaymentKinds = []string{"sale", "capture", "authorization"}

func IsPaymentKind(kind string) bool {
	for _, k := range PaymentKinds {
		if kind == k {
			return true
		}
	}
	return false
}

type Payment struct {
	ID                   int             `gorm:"primary_key" json:"id"`
	OrderId              int             `gorm:"index;not null" json:"order_id"`
	ShopifyTransactionId string          `gorm:"size:64;index" json:"shopify_transaction_id"`
	Kind                 string          `gorm:"size:30" json:"kind"`
	Gateway              string          `gorm:"size:100" json:"gateway"`
	Status               string          `gorm:"size:30" json:"status"`
	Amount               decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"amount"`
	Currency             string          `gorm:"size:3;default:'USD'" json:"currency"`
	// When Shopify processed the transaction, not when we stored it.
	ProcessedAt *time.Time `json:"processed_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
