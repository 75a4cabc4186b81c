package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"bitbucket.org/everpeakcommerce/shopadmin_backend/config"
)

const (
	SyncStatusQueued  = "queued"
	SyncStatusRunning = "running"
	SyncStatusSuccess = "success"
	SyncStatusFailed  = "failed"
	// Some orders landed, some did not.
	SyncStatusPartial = "partial"
)

const (
	SyncTriggerManual  = "manual"
	SyncTriggerWebhook = "webhook"
	SyncTriggerRetry   = "retry"
	SyncTriggerSystem  = "system"
)

const syncStatusCacheKey = "shopify:sync:last_run"

// SyncRun records one ingestion pass. The latest successful run is the
// durable "last synced" marker shown on the dashboard.
type SyncRun struct {
	ID           int        `gorm:"primary_key" json:"id"`
	Status       string     `gorm:"size:20;index;default:'queued'" json:"status"`
	TriggeredBy  string     `gorm:"size:20;default:'manual'" json:"triggered_by"`
	FullSync     bool       `gorm:"default:false" json:"full_sync"`
	OrdersSynced int        `gorm:"default:0" json:"orders_synced"`
	ErrorCount   int        `gorm:"default:0" json:"error_count"`
	StartedAt    *time.Time `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
	DurationMs   int64      `gorm:"default:0" json:"duration_ms"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SyncError is one non-fatal failure captured during a run, kept so a
// partial run can be audited and retried order by order.
type SyncError struct {
	ID             int       `gorm:"primary_key" json:"id"`
	SyncRunId      int       `gorm:"index;not null" json:"sync_run_id"`
	ShopifyOrderId string    `gorm:"size:64;index" json:"shopify_order_id"`
	Stage          string    `gorm:"size:50" json:"stage"`
	Message        string    `gorm:"type:text" json:"message"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateSyncRun(tx *gorm.DB, ctx context.Context, triggeredBy string, fullSync bool) (*SyncRun, error) {
	run := &SyncRun{
		Status:      SyncStatusQueued,
		TriggeredBy: triggeredBy,
		FullSync:    fullSync,
	}
	if err := tx.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (run *SyncRun) MarkRunning(tx *gorm.DB, ctx context.Context) error {
	now := time.Now().UTC()
	run.Status = SyncStatusRunning
	run.StartedAt = &now
	// The cached last-run snapshot is stale the moment a new run starts.
	config.RemoveRedisKey(syncStatusCacheKey)
	return tx.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":     run.Status,
		"started_at": run.StartedAt,
	}).Error
}

// MarkFinished stamps the terminal status plus counters and refreshes the
// cached dashboard copy.
func (run *SyncRun) MarkFinished(tx *gorm.DB, ctx context.Context, status string, ordersSynced int, errorCount int) error {
	now := time.Now().UTC()
	run.Status = status
	run.OrdersSynced = ordersSynced
	run.ErrorCount = errorCount
	run.FinishedAt = &now
	if run.StartedAt != nil {
		run.DurationMs = now.Sub(*run.StartedAt).Milliseconds()
	}
	err := tx.WithContext(ctx).Model(run).Updates(map[string]interface{}{
		"status":        run.Status,
		"orders_synced": run.OrdersSynced,
		"error_count":   run.ErrorCount,
		"finished_at":   run.FinishedAt,
		"duration_ms":   run.DurationMs,
	}).Error
	if err != nil {
		return err
	}
	config.SetRedisObject(syncStatusCacheKey, run, 24*time.Hour)
	return nil
}

func (run *SyncRun) RecordError(tx *gorm.DB, ctx context.Context, shopifyOrderId string, stage string, message string) error {
	return tx.WithContext(ctx).Create(&SyncError{
		SyncRunId:      run.ID,
		ShopifyOrderId: shopifyOrderId,
		Stage:          stage,
		Message:        message,
	}).Error
}

// GetLatestSyncRun returns the most recent run regardless of status, trying
// the redis copy first. Nil when no run has ever happened.
func GetLatestSyncRun(tx *gorm.DB, ctx context.Context) (*SyncRun, error) {
	var cached SyncRun
	found, err := config.GetRedisObject(syncStatusCacheKey, &cached)
	if err == nil && found && cached.Status != SyncStatusRunning {
		return &cached, nil
	}

	var run SyncRun
	err = tx.WithContext(ctx).Order("id desc").Take(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// LastSuccessfulSyncAt is the durable replacement for a cache-only marker:
// it survives restarts because it reads from sync_runs.
func LastSuccessfulSyncAt(tx *gorm.DB, ctx context.Context) (*time.Time, error) {
	var run SyncRun
	err := tx.WithContext(ctx).
		Where("status IN ?", []string{SyncStatusSuccess, SyncStatusPartial}).
		Order("finished_at desc").
		Take(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return run.FinishedAt, nil
}

func ListSyncRuns(tx *gorm.DB, ctx context.Context, limit int) ([]*SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var runs []*SyncRun
	err := tx.WithContext(ctx).Order("id desc").Limit(limit).Find(&runs).Error
	return runs, err
}

func ListSyncErrors(tx *gorm.DB, ctx context.Context, syncRunId int) ([]*SyncError, error) {
	var errs []*SyncError
	err := tx.WithContext(ctx).Where("sync_run_id = ?", syncRunId).Find(&errs).Error
	return errs, err
}
