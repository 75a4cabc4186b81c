package shopifysync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/models"
)

func TestIngestOrderLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "shopadmin_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	payload := sampleOrderPayload()
	gw := &fakeGateway{
		pages: [][]shopifyOrder{{*payload}},
		transactions: map[string][]shopifyTransaction{
			"9001": {
				{ID: "70001", Kind: "sale", Gateway: "shopify_payments", Status: "success", Amount: "100.00", Currency: "USD", ProcessedAt: "2024-03-01T10:00:05Z"},
				{ID: "70002", Kind: "refund", Status: "success", Amount: "15.00"},
			},
		},
		refunds: map[string][]shopifyRefund{
			"9001": {
				{
					ID:          json.Number("80001"),
					Note:        "damaged in transit",
					CreatedAt:   "2024-03-02T12:00:00Z",
					ProcessedAt: "2024-03-02T12:00:30Z",
					RefundLineItems: []shopifyRefundLineItem{
						{LineItemID: json.Number("60001"), Quantity: 1, Subtotal: json.Number("20.00"), TotalTax: json.Number("1.50"), RestockType: "return"},
					},
					OrderAdjustments: []shopifyOrderAdjustment{
						{ID: json.Number("90001"), Kind: "shipping_refund", Amount: json.Number("5.00"), TaxAmount: json.Number("0.25")},
					},
					Transactions: json.RawMessage(`[{"id":70002,"kind":"refund","amount":"15.00"}]`),
				},
			},
		},
	}
	ing := &Ingester{db: db, gw: gw}

	// Upsert twice: the second pass must replace, not duplicate.
	if err := ing.UpsertOrderPayload(ctx, payload); err != nil {
		t.Fatalf("UpsertOrderPayload(first): %v", err)
	}
	if err := ing.UpsertOrderPayload(ctx, payload); err != nil {
		t.Fatalf("UpsertOrderPayload(second): %v", err)
	}

	assertRowCount(t, db, &models.Order{}, 1)
	assertRowCount(t, db, &models.OrderItem{}, 1)
	assertRowCount(t, db, &models.Payment{}, 1)
	assertRowCount(t, db, &models.Fulfillment{}, 1)
	assertRowCount(t, db, &models.Refund{}, 1)
	assertRowCount(t, db, &models.RefundItem{}, 1)
	assertRowCount(t, db, &models.RefundAdjustment{}, 1)
	assertRowCount(t, db, &models.Customer{}, 1)

	stored, err := models.GetOrderByShopifyId(db, ctx, "9001")
	if err != nil {
		t.Fatalf("GetOrderByShopifyId: %v", err)
	}
	if !stored.IsPaid {
		t.Fatal("paid order must be flagged is_paid")
	}
	if stored.TotalRefunds.Cmp(decimal.RequireFromString("15.00")) != 0 {
		t.Fatalf("expected total_refunds 15.00, got %s", stored.TotalRefunds.String())
	}
	if stored.CustomerId == nil {
		t.Fatal("order must link to the upserted customer")
	}

	full, err := models.GetOrder(db, ctx, stored.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(full.Refunds) != 1 {
		t.Fatalf("expected 1 refund, got %d", len(full.Refunds))
	}
	refund := full.Refunds[0]
	if refund.TotalAmount.Cmp(decimal.RequireFromString("15.00")) != 0 {
		t.Fatalf("expected refund total_amount 15.00, got %s", refund.TotalAmount.String())
	}
	if refund.Gateway != "shopify_payments" {
		t.Fatalf("refund must inherit the order's payment gateway, got %q", refund.Gateway)
	}
	if refund.TotalTax.Cmp(decimal.RequireFromString("1.50")) != 0 {
		t.Fatalf("expected refund total_tax 1.50, got %s", refund.TotalTax.String())
	}
	if refund.ProcessedAt == nil {
		t.Fatal("refund processed_at must be stored")
	}
	if len(refund.Transactions) == 0 {
		t.Fatal("refund transactions blob must be stored")
	}
	if len(refund.RefundItems) != 1 {
		t.Fatalf("expected 1 refund item, got %d", len(refund.RefundItems))
	}
	if refund.RefundItems[0].OrderItemId == nil || refund.RefundItems[0].ProductId == nil {
		t.Fatalf("refund item must back-link to the order item and product, got %+v", refund.RefundItems[0])
	}
	if len(refund.RefundAdjustments) != 1 {
		t.Fatalf("expected 1 refund adjustment, got %d", len(refund.RefundAdjustments))
	}
	if refund.RefundAdjustments[0].ShopifyAdjustmentId != "90001" {
		t.Fatalf("adjustment id: %q", refund.RefundAdjustments[0].ShopifyAdjustmentId)
	}
	if refund.RefundAdjustments[0].TaxAmount.Cmp(decimal.RequireFromString("0.25")) != 0 {
		t.Fatalf("expected adjustment tax_amount 0.25, got %s", refund.RefundAdjustments[0].TaxAmount.String())
	}
	if len(full.Payments) != 1 || full.Payments[0].Kind != "sale" {
		t.Fatalf("expected a single sale payment, got %+v", full.Payments)
	}
	if len(full.Fulfillments) != 1 {
		t.Fatalf("expected 1 fulfillment, got %d", len(full.Fulfillments))
	}
	if full.Fulfillments[0].ShopifyUpdatedAt == nil {
		t.Fatal("fulfillment updated_at must be stored")
	}

	// Full pass through the listing path records a successful run.
	run, err := ing.SyncAll(ctx, models.SyncTriggerManual, false)
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if run.Status != models.SyncStatusSuccess {
		t.Fatalf("expected success run, got %s", run.Status)
	}
	if run.OrdersSynced != 1 || run.ErrorCount != 0 {
		t.Fatalf("expected 1 synced, 0 errors, got %d/%d", run.OrdersSynced, run.ErrorCount)
	}
	latest, err := models.GetLatestSyncRun(db, ctx)
	if err != nil {
		t.Fatalf("GetLatestSyncRun: %v", err)
	}
	if latest == nil || latest.ID != run.ID {
		t.Fatalf("latest run mismatch: %+v", latest)
	}
	assertRowCount(t, db, &models.Order{}, 1)

	// Deleting an order that never synced is a no-op.
	if err := ing.RemoveOrder(ctx, "does-not-exist"); err != nil {
		t.Fatalf("RemoveOrder(unknown): %v", err)
	}

	// Deleting the order leaves no orphans but keeps the customer.
	if err := ing.RemoveOrder(ctx, "9001"); err != nil {
		t.Fatalf("RemoveOrder: %v", err)
	}
	assertRowCount(t, db, &models.Order{}, 0)
	assertRowCount(t, db, &models.OrderItem{}, 0)
	assertRowCount(t, db, &models.Payment{}, 0)
	assertRowCount(t, db, &models.Fulfillment{}, 0)
	assertRowCount(t, db, &models.Refund{}, 0)
	assertRowCount(t, db, &models.RefundItem{}, 0)
	assertRowCount(t, db, &models.RefundAdjustment{}, 0)
	assertRowCount(t, db, &models.Customer{}, 1)
	assertRowCount(t, db, &models.Product{}, 1)
}

func sampleOrderPayload() *shopifyOrder {
	return &shopifyOrder{
		ID:                  json.Number("9001"),
		OrderNumber:         json.Number("1001"),
		Name:                "#1001",
		Email:               "buyer@example.com",
		FinancialStatus:     "paid",
		Currency:            "USD",
		TotalPrice:          json.Number("100.00"),
		TotalLineItemsPrice: json.Number("110.00"),
		TotalDiscounts:      json.Number("10.00"),
		TotalTax:            json.Number("0.00"),
		ProcessedAt:         "2024-03-01T10:00:00Z",
		CreatedAt:           "2024-03-01T09:59:00Z",
		Customer: &shopifyCustomer{
			ID:        json.Number("7001"),
			Email:     "buyer@example.com",
			FirstName: "Alex",
			LastName:  "Chen",
			CreatedAt: "2023-12-01T00:00:00Z",
		},
		LineItems: []shopifyLineItem{
			{
				ID:        json.Number("60001"),
				ProductID: json.Number("50001"),
				Title:     "Ceramic Mug",
				Sku:       "MUG-001",
				Quantity:  2,
				Price:     json.Number("55.00"),
				DiscountAllocations: []shopifyDiscountAllocation{
					{Amount: json.Number("10.00")},
				},
			},
		},
		Fulfillments: []shopifyFulfillment{
			{
				ID:              json.Number("65001"),
				Status:          "success",
				TrackingCompany: "DHL",
				TrackingNumber:  "JD014600003RU",
				CreatedAt:       "2024-03-01T11:00:00Z",
				UpdatedAt:       "2024-03-01T13:30:00Z",
				LineItems:       []shopifyLineItem{{ID: json.Number("60001")}},
			},
		},
	}
}

func assertRowCount(t *testing.T, db *gorm.DB, model interface{}, expected int64) {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	if count != expected {
		t.Fatalf("expected %d rows of %T, got %d", expected, model, count)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("shopadmin-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("shopadmin-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=shopadmin_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
