package reports

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
)

type OrdersFilter struct {
	FromDate        *time.Time
	ToDate          *time.Time
	FinancialStatus string
	Search          string
	Limit           int
	Offset          int
}

type OrderRow struct {
	ID                int             `json:"Id"`
	ShopifyOrderId    string          `json:"ShopifyOrderId"`
	OrderNumber       string          `json:"OrderNumber"`
	Email             string          `json:"Email"`
	CustomerName      string          `json:"CustomerName"`
	FinancialStatus   string          `json:"FinancialStatus"`
	FulfillmentStatus *string         `json:"FulfillmentStatus"`
	TotalPrice        decimal.Decimal `json:"TotalPrice"`
	SubtotalPrice     decimal.Decimal `json:"SubtotalPrice"`
	TotalDiscounts    decimal.Decimal `json:"TotalDiscounts"`
	TotalRefunds      decimal.Decimal `json:"TotalRefunds"`
	Currency          string          `json:"Currency"`
	ProcessedAt       *time.Time      `json:"ProcessedAt"`
}

// GetOrdersReport lists orders for the admin table view, newest first.
func GetOrdersReport(ctx context.Context, filter OrdersFilter) ([]*OrderRow, int64, error) {
	db := config.GetDB().WithContext(ctx).
		Table("orders").
		Select(`orders.id, orders.shopify_order_id, orders.order_number, orders.email,
			TRIM(CONCAT(COALESCE(customers.first_name, ''), ' ', COALESCE(customers.last_name, ''))) AS customer_name,
			orders.financial_status, orders.fulfillment_status, orders.total_price,
			orders.subtotal_price, orders.total_discounts, orders.total_refunds,
			orders.currency, orders.processed_at`).
		Joins("LEFT JOIN customers ON customers.id = orders.customer_id")

	if filter.FromDate != nil {
		db = db.Where("orders.processed_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		db = db.Where("orders.processed_at <= ?", *filter.ToDate)
	}
	if s := strings.TrimSpace(filter.FinancialStatus); s != "" {
		db = db.Where("orders.financial_status = ?", s)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		like := "%" + s + "%"
		db = db.Where(
			"orders.order_number LIKE ? OR orders.email LIKE ? OR orders.shopify_order_id LIKE ?",
			like, like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []*OrderRow
	err := db.Order("orders.processed_at desc, orders.id desc").
		Limit(limit).Offset(offset).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
