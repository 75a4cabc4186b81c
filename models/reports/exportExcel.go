package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/utils"
)

// BuildOrdersExcel renders the orders report as a workbook. The caller owns
// the file and should stream it to the response with the xlsx content type.
func BuildOrdersExcel(ctx context.Context, filter OrdersFilter) (*excelize.File, error) {
	// Export is not paged: pull everything matching the filter.
	filter.Limit = 200
	filter.Offset = 0

	f := excelize.NewFile()
	sheetName := "Orders"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headings := []string{
		"Order Number", "Shopify Order Id", "Customer", "Email",
		"Financial Status", "Fulfillment Status", "Total", "Subtotal",
		"Discounts", "Refunds", "Currency", "Processed At",
	}
	col := 'A'
	for _, h := range headings {
		f.SetCellValue(sheetName, string(col)+"1", h)
		col++
	}

	rowNo := 2
	for {
		rows, _, err := GetOrdersReport(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, d := range rows {
			processedAt := ""
			if d.ProcessedAt != nil {
				processedAt = d.ProcessedAt.UTC().Format(time.RFC3339)
			}
			values := []interface{}{
				d.OrderNumber,
				d.ShopifyOrderId,
				d.CustomerName,
				d.Email,
				d.FinancialStatus,
				utils.DereferencePtr(d.FulfillmentStatus, ""),
				d.TotalPrice,
				d.SubtotalPrice,
				d.TotalDiscounts,
				d.TotalRefunds,
				d.Currency,
				processedAt,
			}
			col := 'A'
			for _, value := range values {
				f.SetCellValue(sheetName, string(col)+fmt.Sprint(rowNo), value)
				col++
			}
			rowNo++
		}
		if len(rows) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}

	return f, nil
}
