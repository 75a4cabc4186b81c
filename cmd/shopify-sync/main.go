package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/models"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/shopifysync"
)

// One-shot sync runner for cron jobs and operators: connects, migrates,
// runs a single ingestion pass and exits non-zero on failure.
func main() {
	fullSync := flag.Bool("full", false, "wipe order-derived tables before importing")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	ing, err := shopifysync.NewIngester(db)
	if err != nil {
		log.Fatal("shopify config: ", err)
	}

	run, err := ing.SyncAll(ctx, models.SyncTriggerSystem, *fullSync)
	if run != nil {
		log.Printf("sync run %d finished: status=%s orders=%d errors=%d duration_ms=%d",
			run.ID, run.Status, run.OrdersSynced, run.ErrorCount, run.DurationMs)
	}
	if err != nil {
		log.Fatal("sync failed: ", err)
	}
	if run != nil && run.Status == models.SyncStatusFailed {
		os.Exit(1)
	}
}
