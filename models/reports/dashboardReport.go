package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/models"
)

type DashboardResponse struct {
	FromDate time.Time `json:"FromDate"`
	ToDate   time.Time `json:"ToDate"`

	OrderCount    int64 `json:"OrderCount"`
	CustomerCount int64 `json:"CustomerCount"`

	GrossSales     decimal.Decimal `json:"GrossSales"`
	TotalDiscounts decimal.Decimal `json:"TotalDiscounts"`
	TotalRefunds   decimal.Decimal `json:"TotalRefunds"`
	TotalTax       decimal.Decimal `json:"TotalTax"`
	NetRevenue     decimal.Decimal `json:"NetRevenue"`
	PaymentsTotal  decimal.Decimal `json:"PaymentsTotal"`
	// Average order value over revenue orders: (gross - discounts) / count.
	AverageOrderValue decimal.Decimal `json:"AverageOrderValue"`

	DailySales         []*DailySalesPoint `json:"DailySales"`
	StatusDistribution []*StatusCount     `json:"StatusDistribution"`
}

type DailySalesPoint struct {
	Day        string          `json:"Day"`
	OrderCount int64           `json:"OrderCount"`
	Sales      decimal.Decimal `json:"Sales"`
}

type StatusCount struct {
	FinancialStatus string `json:"FinancialStatus"`
	OrderCount      int64  `json:"OrderCount"`
}

type dashboardTotalsRow struct {
	OrderCount     int64
	GrossSales     decimal.Decimal
	TotalDiscounts decimal.Decimal
	TotalRefunds   decimal.Decimal
	TotalTax       decimal.Decimal
}

// GetDashboardReport aggregates revenue metrics over the date range. Only
// revenue orders (paid-like financial statuses) count toward sales figures;
// the status distribution covers every order in range.
func GetDashboardReport(ctx context.Context, fromDate time.Time, toDate time.Time) (*DashboardResponse, error) {
	started := time.Now()
	cacheKey := fmt.Sprintf("report:dashboard:%s:%s",
		fromDate.UTC().Format("20060102"), toDate.UTC().Format("20060102"))

	if reportCacheEnabled() {
		var cached DashboardResponse
		if found, err := cacheGet(cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	db := config.GetDB()

	var totals dashboardTotalsRow
	err := db.WithContext(ctx).Raw(`
SELECT
    COUNT(id) AS order_count,
    COALESCE(SUM(subtotal_price), 0) AS gross_sales,
    COALESCE(SUM(total_discounts), 0) AS total_discounts,
    COALESCE(SUM(total_refunds), 0) AS total_refunds,
    COALESCE(SUM(total_tax), 0) AS total_tax
FROM
    orders
WHERE
    processed_at BETWEEN ? AND ?
        AND financial_status IN (?)
`, fromDate, toDate, models.PaidLikeStatuses).Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	var customerCount int64
	err = db.WithContext(ctx).Raw(`
SELECT
    COUNT(DISTINCT customer_id)
FROM
    orders
WHERE
    processed_at BETWEEN ? AND ?
        AND financial_status IN (?)
        AND customer_id IS NOT NULL
`, fromDate, toDate, models.PaidLikeStatuses).Scan(&customerCount).Error
	if err != nil {
		return nil, err
	}

	var paymentsTotal decimal.Decimal
	err = db.WithContext(ctx).Raw(`
SELECT
    COALESCE(SUM(payments.amount), 0)
FROM
    payments
        JOIN
    orders ON orders.id = payments.order_id
WHERE
    orders.processed_at BETWEEN ? AND ?
`, fromDate, toDate).Scan(&paymentsTotal).Error
	if err != nil {
		return nil, err
	}

	var daily []*DailySalesPoint
	err = db.WithContext(ctx).Raw(`
SELECT
    DATE_FORMAT(processed_at, '%Y-%m-%d') AS day,
    COUNT(id) AS order_count,
    COALESCE(SUM(subtotal_price - total_discounts), 0) AS sales
FROM
    orders
WHERE
    processed_at BETWEEN ? AND ?
        AND financial_status IN (?)
GROUP BY day
ORDER BY day
`, fromDate, toDate, models.PaidLikeStatuses).Scan(&daily).Error
	if err != nil {
		return nil, err
	}

	var statuses []*StatusCount
	err = db.WithContext(ctx).Raw(`
SELECT
    financial_status,
    COUNT(id) AS order_count
FROM
    orders
WHERE
    processed_at BETWEEN ? AND ?
GROUP BY financial_status
`, fromDate, toDate).Scan(&statuses).Error
	if err != nil {
		return nil, err
	}

	netRevenue := totals.GrossSales.Sub(totals.TotalDiscounts).Sub(totals.TotalRefunds).Round(2)
	aov := decimal.Zero
	if totals.OrderCount > 0 {
		aov = totals.GrossSales.Sub(totals.TotalDiscounts).
			Div(decimal.NewFromInt(totals.OrderCount)).Round(2)
	}

	resp := &DashboardResponse{
		FromDate:           fromDate,
		ToDate:             toDate,
		OrderCount:         totals.OrderCount,
		CustomerCount:      customerCount,
		GrossSales:         totals.GrossSales,
		TotalDiscounts:     totals.TotalDiscounts,
		TotalRefunds:       totals.TotalRefunds,
		TotalTax:           totals.TotalTax,
		NetRevenue:         netRevenue,
		PaymentsTotal:      paymentsTotal,
		AverageOrderValue:  aov,
		DailySales:         daily,
		StatusDistribution: statuses,
	}

	if reportCacheEnabled() {
		_ = cacheSet(cacheKey, resp, reportCacheTTL())
	}
	logSlowReport(ctx, "dashboard", started, nil)
	return resp, nil
}
