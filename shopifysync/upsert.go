package shopifysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/models"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/utils"
)

// orderGateway is the slice of the Shopify client the upsert path needs.
// Kept narrow so order processing can run against a fake.
type orderGateway interface {
	GetTransactions(ctx context.Context, orderId string) ([]shopifyTransaction, error)
	GetRefunds(ctx context.Context, orderId string) ([]shopifyRefund, error)
}

// syncErrorRecorder captures non-fatal failures during order processing.
// Nil-safe: webhook processing passes nil and relies on logs alone.
type syncErrorRecorder interface {
	RecordError(tx *gorm.DB, ctx context.Context, shopifyOrderId string, stage string, message string) error
}

// UpsertOrder replaces the local copy of one Shopify order. The old order
// row and everything hanging off it are deleted and rebuilt from the payload
// inside a single transaction, so readers see either the old order or the
// new one, never a mix.
//
// Payment and refund fetches happen before the transaction opens. A failed
// transactions fetch is not fatal: the order lands without payment rows and
// the failure is recorded.
func UpsertOrder(ctx context.Context, db *gorm.DB, gw orderGateway, payload *shopifyOrder, recorder syncErrorRecorder) error {
	logger := config.GetLogger()
	shopifyOrderId := payload.ID.String()
	if shopifyOrderId == "" {
		return errors.New("order payload has no id")
	}
	source, _ := utils.GetWebhookTopicFromContext(ctx)
	if source == "" {
		source = "sync"
	}
	logData := map[string]string{"order": shopifyOrderId, "source": source}

	payments, err := fetchPayments(ctx, gw, shopifyOrderId)
	if err != nil {
		config.LogError(logger, "shopifysync", "UpsertOrder", "fetch transactions", logData, err)
		if recorder != nil {
			_ = recorder.RecordError(db, ctx, shopifyOrderId, "transactions", err.Error())
		}
		payments = nil
	}

	// Refund rows feed the reconciliation totals, so losing them silently is
	// not an option: fall back to the refunds embedded in the payload, and
	// abort the order when neither source is available.
	refunds, err := gw.GetRefunds(ctx, shopifyOrderId)
	if err != nil {
		if len(payload.Refunds) == 0 {
			config.LogError(logger, "shopifysync", "UpsertOrder", "fetch refunds", logData, err)
			return fmt.Errorf("fetch refunds for order %s: %w", shopifyOrderId, err)
		}
		config.LogError(logger, "shopifysync", "UpsertOrder", "fetch refunds, using embedded payload", logData, err)
		refunds = payload.Refunds
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customerId, err := upsertOrderCustomer(tx, ctx, payload.Customer)
		if err != nil {
			return err
		}

		existing, err := models.GetOrderByShopifyId(tx, ctx, shopifyOrderId)
		if err != nil && err != models.ErrOrderNotFound {
			return err
		}
		if existing != nil {
			if err := models.DeleteOrderCascade(tx, ctx, existing); err != nil {
				return err
			}
		}

		order := buildOrder(payload, customerId)
		if err := tx.Create(order).Error; err != nil {
			return err
		}

		if err := createOrderItems(tx, ctx, order.ID, payload.LineItems); err != nil {
			return err
		}
		if err := createFulfillments(tx, ctx, order.ID, payload.Fulfillments); err != nil {
			return err
		}
		if err := createPayments(tx, ctx, order.ID, payments); err != nil {
			return err
		}
		if err := createRefunds(tx, ctx, order.ID, refunds, firstGateway(payments)); err != nil {
			return err
		}

		_, err = models.RecomputeRefundTotals(tx, ctx, order.ID)
		return err
	})
}

func fetchPayments(ctx context.Context, gw orderGateway, shopifyOrderId string) ([]shopifyTransaction, error) {
	transactions, err := gw.GetTransactions(ctx, shopifyOrderId)
	if err != nil {
		return nil, err
	}
	var payments []shopifyTransaction
	for _, t := range transactions {
		if models.IsPaymentKind(t.Kind) && t.Status == "success" {
			payments = append(payments, t)
		}
	}
	return payments, nil
}

func upsertOrderCustomer(tx *gorm.DB, ctx context.Context, payload *shopifyCustomer) (*int, error) {
	if payload == nil || payload.ID.String() == "" {
		return nil, nil
	}
	shopifyCustomerId := payload.ID.String()

	addresses := payload.Addresses
	if len(addresses) == 0 && len(payload.DefaultAddress) > 0 {
		addresses, _ = json.Marshal([]json.RawMessage{payload.DefaultAddress})
	}

	customer := &models.Customer{
		ShopifyCustomerId: &shopifyCustomerId,
		Email:             strings.TrimSpace(payload.Email),
		FirstName:         strings.TrimSpace(payload.FirstName),
		LastName:          strings.TrimSpace(payload.LastName),
		Phone:             strings.TrimSpace(payload.Phone),
		Addresses:         addresses,
		VerifiedEmail:     payload.VerifiedEmail,
		State:             payload.State,
		Tags:              payload.Tags,
		Note:              payload.Note,
		ShopifyCreatedAt:  utils.ParseShopifyTime(payload.CreatedAt),
	}
	if err := models.UpsertCustomer(tx, ctx, customer); err != nil {
		return nil, err
	}

	stored, err := models.GetCustomerByShopifyId(tx, ctx, shopifyCustomerId)
	if err != nil {
		return nil, err
	}
	return &stored.ID, nil
}

func buildOrder(payload *shopifyOrder, customerId *int) *models.Order {
	orderNumber := payload.OrderNumber.String()
	if orderNumber == "" {
		orderNumber = strings.TrimPrefix(payload.Name, "#")
	}

	subtotal := utils.DecimalFromNumber(payload.TotalLineItemsPrice)
	if payload.TotalLineItemsPrice.String() == "" {
		subtotal = utils.DecimalFromNumber(payload.SubtotalPrice)
	}

	currency := strings.ToUpper(strings.TrimSpace(payload.Currency))
	if currency == "" {
		currency = "USD"
	}

	var shippingStatus *string
	if payload.FulfillmentStatus != nil {
		s := *payload.FulfillmentStatus
		shippingStatus = &s
	}

	processedAt := utils.ParseShopifyTime(payload.ProcessedAt)
	if processedAt == nil {
		processedAt = utils.ParseShopifyTime(payload.CreatedAt)
	}

	return &models.Order{
		ShopifyOrderId:    payload.ID.String(),
		OrderNumber:       orderNumber,
		CustomerId:        customerId,
		Email:             strings.TrimSpace(payload.Email),
		FinancialStatus:   payload.FinancialStatus,
		FulfillmentStatus: payload.FulfillmentStatus,
		ShippingStatus:    shippingStatus,
		IsPaid:            models.IsPaidLikeStatus(payload.FinancialStatus),
		TotalPrice:        utils.DecimalFromNumber(payload.TotalPrice),
		SubtotalPrice:     subtotal,
		TotalDiscounts:    utils.DecimalFromNumber(payload.TotalDiscounts).Abs(),
		TotalTax:          utils.DecimalFromNumber(payload.TotalTax),
		Currency:          currency,
		ProcessedAt:       processedAt,
		ClosedAt:          utils.ParseShopifyTime(payload.ClosedAt),
		CancelledAt:       utils.ParseShopifyTime(payload.CancelledAt),
		CancelReason:      payload.CancelReason,
		ShippingAddress:   payload.ShippingAddress,
		BillingAddress:    payload.BillingAddress,
		Note:              payload.Note,
	}
}

func createOrderItems(tx *gorm.DB, ctx context.Context, orderId int, lineItems []shopifyLineItem) error {
	for _, li := range lineItems {
		productId, err := upsertLineItemProduct(tx, ctx, li)
		if err != nil {
			return err
		}

		price := utils.DecimalFromNumber(li.Price)
		quantity := li.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		discount := lineItemDiscount(li)
		tax := decimal.Zero
		for _, tl := range li.TaxLines {
			tax = tax.Add(utils.DecimalFromNumber(tl.Price))
		}
		total := price.Mul(decimal.NewFromInt(int64(quantity))).Sub(discount).Add(tax).Round(2)

		item := &models.OrderItem{
			OrderId:            orderId,
			ProductId:          productId,
			ShopifyLineItemId:  li.ID.String(),
			Title:              li.Title,
			Sku:                li.Sku,
			Quantity:           quantity,
			Price:              price,
			Total:              total,
			DiscountAllocation: discount,
			Properties:         li.Properties,
			FulfillmentStatus:  li.FulfillmentStatus,
		}
		if err := tx.WithContext(ctx).Create(item).Error; err != nil {
			return err
		}
	}
	return nil
}

// lineItemDiscount sums a line's discount allocations. Amounts are taken as
// absolute values since some channels report them negative.
func lineItemDiscount(li shopifyLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, alloc := range li.DiscountAllocations {
		total = total.Add(moneyFromNumberOrSet(alloc.Amount, alloc.AmountSet).Abs())
	}
	return total
}

func upsertLineItemProduct(tx *gorm.DB, ctx context.Context, li shopifyLineItem) (*int, error) {
	shopifyProductId := li.ProductID.String()
	if shopifyProductId == "" {
		return nil, nil
	}
	title := strings.TrimSpace(li.Title)
	if title == "" {
		title = "Shopify Product " + shopifyProductId
	}
	product := &models.Product{
		ShopifyProductId: shopifyProductId,
		Title:            title,
		Vendor:           strings.TrimSpace(li.Vendor),
	}
	if err := models.UpsertProduct(tx, ctx, product); err != nil {
		return nil, err
	}

	var stored models.Product
	if err := tx.WithContext(ctx).
		Where("shopify_product_id = ?", shopifyProductId).
		Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored.ID, nil
}

func createFulfillments(tx *gorm.DB, ctx context.Context, orderId int, fulfillments []shopifyFulfillment) error {
	for _, f := range fulfillments {
		lineItemIds := make([]string, 0, len(f.LineItems))
		for _, li := range f.LineItems {
			lineItemIds = append(lineItemIds, li.ID.String())
		}
		encoded, _ := json.Marshal(lineItemIds)

		row := &models.Fulfillment{
			OrderId:              orderId,
			ShopifyFulfillmentId: f.ID.String(),
			Status:               f.Status,
			TrackingCompany:      f.TrackingCompany,
			TrackingNumber:       f.TrackingNumber,
			TrackingUrl:          f.TrackingUrl,
			LineItemIds:          encoded,
			ShopifyCreatedAt:     utils.ParseShopifyTime(f.CreatedAt),
			ShopifyUpdatedAt:     utils.ParseShopifyTime(f.UpdatedAt),
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}

func createPayments(tx *gorm.DB, ctx context.Context, orderId int, transactions []shopifyTransaction) error {
	for _, t := range transactions {
		currency := strings.ToUpper(strings.TrimSpace(t.Currency))
		if currency == "" {
			currency = "USD"
		}
		row := &models.Payment{
			OrderId:              orderId,
			ShopifyTransactionId: t.ID.String(),
			Kind:                 t.Kind,
			Gateway:              t.Gateway,
			Status:               t.Status,
			Amount:               utils.DecimalFromNumber(t.Amount),
			Currency:             currency,
			ProcessedAt:          utils.ParseShopifyTime(t.ProcessedAt),
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return err
		}
	}
	return nil
}

func createRefunds(tx *gorm.DB, ctx context.Context, orderId int, refunds []shopifyRefund, gateway string) error {
	if len(refunds) == 0 {
		return nil
	}

	var orderItems []*models.OrderItem
	if err := tx.WithContext(ctx).Where("order_id = ?", orderId).Find(&orderItems).Error; err != nil {
		return err
	}
	itemsByLineId := make(map[string]*models.OrderItem, len(orderItems))
	for _, oi := range orderItems {
		itemsByLineId[oi.ShopifyLineItemId] = oi
	}

	for _, r := range refunds {
		totalTax := decimal.Zero
		for _, rli := range r.RefundLineItems {
			totalTax = totalTax.Add(moneyFromNumberOrSet(rli.TotalTax, rli.TotalTaxSet))
		}

		processedAt := utils.ParseShopifyTime(r.ProcessedAt)
		if processedAt == nil {
			processedAt = utils.ParseShopifyTime(r.CreatedAt)
		}

		refund := &models.Refund{
			OrderId:          orderId,
			ShopifyRefundId:  r.ID.String(),
			Gateway:          gateway,
			Note:             r.Note,
			TotalTax:         totalTax.Round(2),
			Transactions:     r.Transactions,
			ProcessedAt:      processedAt,
			ShopifyCreatedAt: utils.ParseShopifyTime(r.CreatedAt),
		}
		if err := tx.WithContext(ctx).Create(refund).Error; err != nil {
			return err
		}

		for _, rli := range r.RefundLineItems {
			item := &models.RefundItem{
				RefundId:           refund.ID,
				ShopifyLineItemId:  rli.LineItemID.String(),
				Quantity:           rli.Quantity,
				Subtotal:           moneyFromNumberOrSet(rli.Subtotal, rli.SubtotalSet),
				TotalTax:           moneyFromNumberOrSet(rli.TotalTax, rli.TotalTaxSet),
				DiscountAllocation: refundItemDiscount(rli),
				RestockType:        rli.RestockType,
			}
			if oi := itemsByLineId[item.ShopifyLineItemId]; oi != nil {
				item.OrderItemId = &oi.ID
				item.ProductId = oi.ProductId
			}
			if err := tx.WithContext(ctx).Create(item).Error; err != nil {
				return err
			}
		}

		for _, adj := range r.OrderAdjustments {
			row := &models.RefundAdjustment{
				RefundId:            refund.ID,
				ShopifyAdjustmentId: adj.ID.String(),
				Kind:                adj.Kind,
				Reason:              adj.Reason,
				Amount:              adjustmentAmount(adj),
				TaxAmount:           utils.DecimalFromNumber(adj.TaxAmount),
			}
			if err := tx.WithContext(ctx).Create(row).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// firstGateway is the gateway of the order's first successful payment,
// inherited by refunds whose payloads do not name one.
func firstGateway(transactions []shopifyTransaction) string {
	for _, t := range transactions {
		if g := strings.TrimSpace(t.Gateway); g != "" {
			return g
		}
	}
	return ""
}

// refundItemDiscount estimates the discount share of the refunded units from
// the embedded line item: per-unit discount times the refunded quantity.
func refundItemDiscount(rli shopifyRefundLineItem) decimal.Decimal {
	if rli.LineItem == nil || rli.Quantity <= 0 {
		return decimal.Zero
	}
	lineQty := rli.LineItem.Quantity
	if lineQty <= 0 {
		return decimal.Zero
	}
	lineDiscount := lineItemDiscount(*rli.LineItem)
	if lineDiscount.IsZero() {
		return decimal.Zero
	}
	perUnit := lineDiscount.Div(decimal.NewFromInt(int64(lineQty)))
	return perUnit.Mul(decimal.NewFromInt(int64(rli.Quantity))).Round(2)
}

// adjustmentAmount prefers the shop-currency amount set and keeps the sign
// Shopify reports.
func adjustmentAmount(adj shopifyOrderAdjustment) decimal.Decimal {
	if adj.AmountSet != nil && adj.AmountSet.ShopMoney.Amount.String() != "" {
		return utils.DecimalFromNumber(adj.AmountSet.ShopMoney.Amount)
	}
	return utils.DecimalFromNumber(adj.Amount)
}

// moneyFromNumberOrSet reads the direct field, falling back to the
// shop-currency amount set when the direct field is absent.
func moneyFromNumberOrSet(num json.Number, set *shopifyMoneySet) decimal.Decimal {
	if num.String() != "" {
		return utils.DecimalFromNumber(num)
	}
	if set != nil {
		return utils.DecimalFromNumber(set.ShopMoney.Amount)
	}
	return decimal.Zero
}
