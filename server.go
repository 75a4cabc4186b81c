package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/middlewares"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/models"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/models/reports"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/shopifysync"
)

const defaultPort = "8080"

func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, err := parseDateRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		resp, err := reports.GetDashboardReport(c.Request.Context(), from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func listOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := reports.OrdersFilter{
			FinancialStatus: c.Query("financialStatus"),
			Search:          c.Query("search"),
		}
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := strings.TrimSpace(c.Query("offset")); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}
		if v := strings.TrimSpace(c.Query("from")); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
				return
			}
			filter.FromDate = &t
		}
		if v := strings.TrimSpace(c.Query("to")); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
				return
			}
			end := t.Add(24*time.Hour - time.Nanosecond)
			filter.ToDate = &end
		}

		rows, total, err := reports.GetOrdersReport(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": rows, "total": total})
	}
}

func orderDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
			return
		}
		order, err := models.GetOrder(config.GetDB(), c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, models.ErrOrderNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func listCustomersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 50
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}
		offset := 0
		if v := strings.TrimSpace(c.Query("offset")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}

		db := config.GetDB().WithContext(c.Request.Context()).Model(&models.Customer{})
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + s + "%"
			db = db.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
		}

		var total int64
		if err := db.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var customers []*models.Customer
		if err := db.Order("id desc").Limit(limit).Offset(offset).Find(&customers).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": customers, "total": total})
	}
}

func exportOrdersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, err := parseDateRange(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f, err := reports.BuildOrdersExcel(c.Request.Context(), reports.OrdersFilter{
			FromDate: &from,
			ToDate:   &to,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=orders.xlsx")
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "server.go", "exportOrdersHandler", "write workbook", nil, err)
		}
	}
}

// parseDateRange reads from/to query params (YYYY-MM-DD), defaulting to the
// last 30 days. The to date is inclusive.
func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	from := now.Add(-30 * 24 * time.Hour).Truncate(24 * time.Hour)
	to := now

	if v := strings.TrimSpace(c.Query("from")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, errors.New("invalid from date")
		}
		from = t
	}
	if v := strings.TrimSpace(c.Query("to")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return from, to, errors.New("invalid to date")
		}
		to = t.Add(24*time.Hour - time.Nanosecond)
	}
	if to.Before(from) {
		return from, to, errors.New("to date is before from date")
	}
	return from, to, nil
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision
	// healthy. Until the DB is ready, app endpoints return 503.
	r := gin.New()
	r.Use(middlewares.CorrelationIdMiddleware())
	r.Use(middlewares.ReadinessMiddleware())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.RequestLogger(logger))
	r.Use(gin.Recovery())

	// Webhooks need the raw body for signature checks, so no body-touching
	// middleware may run before them.
	r.POST("/webhooks/shopify/orders/:topic", func(c *gin.Context) {
		ing, err := shopifysync.NewIngester(config.GetDB())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		topic := c.Param("topic")
		switch topic {
		case "create", "updated", "cancelled":
			shopifysync.OrderWebhookHandler(ing, "orders/"+topic)(c)
		case "delete":
			shopifysync.OrderDeleteWebhookHandler(ing)(c)
		default:
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown webhook topic"})
		}
	})

	// Sync control.
	r.POST("/api/shopify/sync", shopifysync.TriggerSyncHandler())
	r.GET("/api/shopify/sync/status", shopifysync.SyncStatusHandler())
	r.GET("/api/shopify/sync-runs", shopifysync.SyncHistoryHandler())
	r.GET("/api/shopify/sync-runs/:id", shopifysync.SyncRunDetailHandler())
	r.POST("/api/shopify/sync-runs/:id/retry", shopifysync.RetrySyncRunHandler())

	// Merchant actions against Shopify.
	r.GET("/api/shopify/locations", shopifysync.ListLocationsHandler())
	r.POST("/api/shopify/orders/fulfill", shopifysync.CreateFulfillmentHandler())
	r.POST("/api/shopify/orders/cancel", shopifysync.CancelOrderHandler())
	r.POST("/api/shopify/orders/refund", shopifysync.CreateRefundHandler())
	r.POST("/api/shopify/orders/adjust-quantity", shopifysync.AdjustQuantityHandler())

	// Local data.
	r.GET("/api/orders", listOrdersHandler())
	r.GET("/api/orders/:id", orderDetailHandler())
	r.GET("/api/customers", listCustomersHandler())
	r.GET("/api/reports/dashboard", dashboardHandler())
	r.GET("/api/reports/orders/export", exportOrdersHandler())

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
