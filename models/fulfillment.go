package models

import (
	"time"
)

type Fulfillment struct {
	ID                   int    `gorm:"primary_key" json:"id"`
	OrderId              int    `gorm:"index;not null" json:"order_id"`
	ShopifyFulfillmentId string `gorm:"size:64;index" json:"shopify_fulfillment_id"`
	Status               string `gorm:"size:30" json:"status"`
	TrackingCompany      string `gorm:"size:100" json:"tracking_company"`
	TrackingNumber       string `gorm:"size:100" json:"tracking_number"`
	TrackingUrl          string `gorm:"size:500" json:"tracking_url"`
	// JSON array of the shopify line item ids covered by this fulfillment.
	LineItemIds      []byte     `gorm:"type:json" json:"line_item_ids"`
	ShopifyCreatedAt *time.Time `json:"shopify_created_at"`
	ShopifyUpdatedAt *time.Time `json:"shopify_updated_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
