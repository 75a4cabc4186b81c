package models

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Customer struct {
	ID                int     `gorm:"primary_key" json:"id"`
	ShopifyCustomerId *string `gorm:"uniqueIndex;size:64" json:"shopify_customer_id"`
	Email             string  `gorm:"size:255;index" json:"email"`
	FirstName         string  `gorm:"size:100" json:"first_name"`
	LastName          string  `gorm:"size:100" json:"last_name"`
	Phone             string  `gorm:"size:30" json:"phone"`
	Addresses         []byte  `gorm:"type:json" json:"addresses"`
	VerifiedEmail     bool    `gorm:"default:false" json:"verified_email"`
	State             string  `gorm:"size:50" json:"state"`
	Tags              string  `gorm:"size:255" json:"tags"`
	Note              string  `gorm:"type:text" json:"note"`
	// Signup timestamp reported by Shopify, distinct from the local row timestamp.
	ShopifyCreatedAt *time.Time `json:"shopify_created_at"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// UpsertCustomer creates or refreshes a customer keyed by its Shopify id.
// Order sync never deletes customers; they only accumulate.
func UpsertCustomer(tx *gorm.DB, ctx context.Context, customer *Customer) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "shopify_customer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "first_name", "last_name", "phone", "addresses",
			"verified_email", "state", "tags", "note", "shopify_created_at",
		}),
	}).Create(customer).Error
}

func GetCustomerByShopifyId(tx *gorm.DB, ctx context.Context, shopifyCustomerId string) (*Customer, error) {
	var customer Customer
	if err := tx.WithContext(ctx).
		Where("shopify_customer_id = ?", shopifyCustomerId).
		Take(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
