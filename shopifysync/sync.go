package shopifysync

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/models"
)

// shopifyGateway is everything the ingestion pipeline needs from the Shopify
// Admin API.
type shopifyGateway interface {
	ListOrders(ctx context.Context, sinceId string) ([]shopifyOrder, error)
	orderGateway
}

// Ingester is the single ingestion service. Bulk sync and webhook handlers
// both go through it, so an order lands in the database the same way no
// matter which path delivered it.
type Ingester struct {
	db *gorm.DB
	gw shopifyGateway
}

func NewIngester(db *gorm.DB) (*Ingester, error) {
	cfg, err := config.GetShopifyConfig()
	if err != nil {
		return nil, err
	}
	return &Ingester{db: db, gw: newShopifyClient(cfg)}, nil
}

// walkOrders pages through the store's orders with since_id pagination,
// calling fn once per order. A short page ends the walk; a full page means
// another request. Returns the number of orders visited.
func walkOrders(ctx context.Context, gw shopifyGateway, fn func(shopifyOrder) error) (int, error) {
	sinceId := ""
	total := 0
	for {
		page, err := gw.ListOrders(ctx, sinceId)
		if err != nil {
			return total, err
		}
		for _, order := range page {
			if err := fn(order); err != nil {
				return total, err
			}
			total++
		}
		if len(page) < orderPageSize {
			return total, nil
		}
		sinceId = page[len(page)-1].ID.String()
	}
}

// SyncAll runs one full ingestion pass: page through every order and upsert
// each. The first order that fails to upsert aborts the walk after its
// failure is recorded, so a broken store never half-syncs quietly; the count
// of orders landed before the abort is still committed to the run. When
// fullSync is set, all order-derived rows are wiped first so deletions
// upstream do not leave stale local orders behind.
func (ing *Ingester) SyncAll(ctx context.Context, triggeredBy string, fullSync bool) (*models.SyncRun, error) {
	logger := config.GetLogger()

	run, err := models.CreateSyncRun(ing.db, ctx, triggeredBy, fullSync)
	if err != nil {
		return nil, err
	}
	if err := run.MarkRunning(ing.db, ctx); err != nil {
		return nil, err
	}

	if fullSync {
		if err := wipeOrderTables(ing.db, ctx); err != nil {
			_ = run.MarkFinished(ing.db, ctx, models.SyncStatusFailed, 0, 1)
			return run, err
		}
	}

	synced := 0
	errorCount := 0
	_, walkErr := walkOrders(ctx, ing.gw, func(order shopifyOrder) error {
		if err := UpsertOrder(ctx, ing.db, ing.gw, &order, run); err != nil {
			errorCount++
			config.LogError(logger, "shopifysync", "SyncAll", "upsert order", order.ID.String(), err)
			_ = run.RecordError(ing.db, ctx, order.ID.String(), "upsert", err.Error())
			return err
		}
		synced++
		return nil
	})

	status := models.SyncStatusSuccess
	if walkErr != nil {
		if errorCount == 0 {
			errorCount++
			config.LogError(logger, "shopifysync", "SyncAll", "list orders", nil, walkErr)
			_ = run.RecordError(ing.db, ctx, "", "list", walkErr.Error())
		}
		status = models.SyncStatusFailed
		if synced > 0 {
			status = models.SyncStatusPartial
		}
	}

	if err := run.MarkFinished(ing.db, ctx, status, synced, errorCount); err != nil {
		return run, err
	}
	if walkErr != nil {
		return run, walkErr
	}
	return run, nil
}

// UpsertOrderPayload ingests one order payload, used by webhook delivery.
func (ing *Ingester) UpsertOrderPayload(ctx context.Context, payload *shopifyOrder) error {
	return UpsertOrder(ctx, ing.db, ing.gw, payload, nil)
}

// RemoveOrder deletes the local copy of an order. Unknown ids are a no-op
// since a delete webhook can arrive for an order that never synced.
func (ing *Ingester) RemoveOrder(ctx context.Context, shopifyOrderId string) error {
	return ing.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := models.GetOrderByShopifyId(tx, ctx, shopifyOrderId)
		if err != nil {
			if errors.Is(err, models.ErrOrderNotFound) {
				return nil
			}
			return err
		}
		return models.DeleteOrderCascade(tx, ctx, order)
	})
}

// wipeOrderTables clears every order-derived table. Customers and products
// are kept since they accumulate independently of order sync.
func wipeOrderTables(db *gorm.DB, ctx context.Context) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{
			&models.RefundItem{},
			&models.RefundAdjustment{},
			&models.Refund{},
			&models.Payment{},
			&models.Fulfillment{},
			&models.OrderItem{},
			&models.Order{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
