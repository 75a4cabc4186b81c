package models

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Product struct {
	ID               int       `gorm:"primary_key" json:"id"`
	ShopifyProductId string    `gorm:"uniqueIndex;size:64;not null" json:"shopify_product_id"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Vendor           string    `gorm:"size:255" json:"vendor"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertProduct creates or refreshes a product keyed by its Shopify id.
// Products are discovered opportunistically from order line items and are
// never deleted by order sync.
func UpsertProduct(tx *gorm.DB, ctx context.Context, product *Product) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "shopify_product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "vendor"}),
	}).Create(product).Error
}
