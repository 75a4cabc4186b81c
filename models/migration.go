package models

import (
	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Customer{},
		&Product{},
		&Order{},
		&OrderItem{},
		&Fulfillment{},
		&Payment{},
		&Refund{},
		&RefundItem{},
		&RefundAdjustment{},
		&SyncRun{},
		&SyncError{},
	)
	utils.ErrorPanic(err)
}
