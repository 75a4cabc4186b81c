package shopifysync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
	"bitbucket.org/everpeakcommerce/shopadmin_backend/models"
)

const syncLockKey = "shopify:sync:lock"

type TriggerSyncRequest struct {
	FullSync *bool `json:"fullSync"`
}

type SyncRunResponse struct {
	ID           int     `json:"id"`
	Status       string  `json:"status"`
	TriggeredBy  string  `json:"triggeredBy"`
	FullSync     bool    `json:"fullSync"`
	OrdersSynced int     `json:"ordersSynced"`
	ErrorCount   int     `json:"errorCount"`
	StartedAt    *string `json:"startedAt"`
	FinishedAt   *string `json:"finishedAt"`
	DurationMs   int64   `json:"durationMs"`
}

type SyncErrorResponse struct {
	ID             int    `json:"id"`
	ShopifyOrderId string `json:"shopifyOrderId"`
	Stage          string `json:"stage"`
	Message        string `json:"message"`
}

// TriggerSyncHandler starts a sync pass. The pass runs in the request, so
// the reply carries the finished run. A redis lock keeps overlapping manual
// triggers from racing each other; without redis the database still ends up
// consistent since each order upsert is transactional.
func TriggerSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TriggerSyncRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		fullSync := config.ShopifyFullSync()
		if req.FullSync != nil {
			fullSync = *req.FullSync
		}

		ctx := c.Request.Context()
		if locker := config.GetRedisLock(); locker != nil {
			lock, err := locker.Obtain(ctx, syncLockKey, 30*time.Minute, nil)
			if err != nil {
				if errors.Is(err, redislock.ErrNotObtained) {
					c.JSON(http.StatusConflict, gin.H{"error": "a sync is already running"})
					return
				}
			} else {
				defer lock.Release(ctx)
			}
		}

		ing, err := NewIngester(config.GetDB())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		run, err := ing.SyncAll(ctx, models.SyncTriggerManual, fullSync)
		if run == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, mapRunToResponse(run))
	}
}

// SyncStatusHandler reports the latest run and the durable last-success
// marker the dashboard shows as "last synced".
func SyncStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		db := config.GetDB()

		run, err := models.GetLatestSyncRun(db, ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		lastSuccess, err := models.LastSuccessfulSyncAt(db, ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := gin.H{
			"lastSuccessSyncAt": formatTime(lastSuccess),
		}
		if run != nil {
			resp["latestRun"] = mapRunToResponse(run)
		}
		c.JSON(http.StatusOK, resp)
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		runs, err := models.ListSyncRuns(config.GetDB(), c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := c.Request.Context()
		db := config.GetDB()

		var run models.SyncRun
		if err := db.WithContext(ctx).Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		syncErrors, err := models.ListSyncErrors(db, ctx, run.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"run":    mapRunToResponse(&run),
			"errors": mapErrors(syncErrors),
		})
	}
}

// RetrySyncRunHandler re-runs ingestion after a failed or partial run.
func RetrySyncRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := c.Request.Context()
		db := config.GetDB()

		var parent models.SyncRun
		if err := db.WithContext(ctx).Where("id = ?", id).Take(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		ing, err := NewIngester(db)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		run, err := ing.SyncAll(ctx, models.SyncTriggerRetry, parent.FullSync)
		if run == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, mapRunToResponse(run))
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func mapRunToResponse(run *models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:           run.ID,
		Status:       run.Status,
		TriggeredBy:  run.TriggeredBy,
		FullSync:     run.FullSync,
		OrdersSynced: run.OrdersSynced,
		ErrorCount:   run.ErrorCount,
		StartedAt:    formatTime(run.StartedAt),
		FinishedAt:   formatTime(run.FinishedAt),
		DurationMs:   run.DurationMs,
	}
}

func mapErrors(list []*models.SyncError) []SyncErrorResponse {
	out := make([]SyncErrorResponse, 0, len(list))
	for _, item := range list {
		out = append(out, SyncErrorResponse{
			ID:             item.ID,
			ShopifyOrderId: item.ShopifyOrderId,
			Stage:          item.Stage,
			Message:        item.Message,
		})
	}
	return out
}
