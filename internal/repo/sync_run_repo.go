// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the SyncRun
// model: run lifecycle rows and prior-run selection for delta computation.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a run is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// StartRun inserts a new running SyncRun for jobName with StartedAt set to
// UTC now. The auto-incremented ID orders runs of the same job.
func StartRun(ctx context.Context, db *gorm.DB, jobName string) (*domain.SyncRun, error) {
	r := &domain.SyncRun{
		JobName:   jobName,
		StartedAt: time.Now().UTC(),
		Status:    domain.RunStatusRunning,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// FinishRun moves run id to a terminal status with the given message and
// FinishedAt set to UTC now. Only rows still in status running are updated;
// finishing an already-terminal run is a no-op, so a late failure handler
// cannot overwrite a recorded outcome. Returns ErrNotFound when no running
// row matched.
func FinishRun(ctx context.Context, db *gorm.DB, id uint64, status, message string) error {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.SyncRun{}).
		Where("id = ? AND status = ?", id, domain.RunStatusRunning).
		Updates(map[string]any{
			"status":      status,
			"message":     message,
			"finished_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetRun fetches a single run by ID, or ErrNotFound if missing.
func GetRun(ctx context.Context, db *gorm.DB, id uint64) (*domain.SyncRun, error) {
	var r domain.SyncRun
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// SelectPriorRun returns the most recent successful run of jobName with an
// ID lower than beforeID that captured at least one snapshot row. Candidates
// without snapshots are skipped so a run that succeeded but recorded nothing
// never becomes a diff baseline. Returns (nil, nil) when no such run exists.
func SelectPriorRun(ctx context.Context, db *gorm.DB, jobName string, beforeID uint64) (*domain.SyncRun, error) {
	var r domain.SyncRun
	err := db.WithContext(ctx).
		Where("job_name = ? AND status = ? AND id < ?", jobName, domain.RunStatusSuccess, beforeID).
		Where("EXISTS (SELECT 1 FROM inventory_snapshots s WHERE s.sync_run_id = sync_runs.id)").
		Order("id DESC").
		First(&r).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRecentRuns returns up to limit runs ordered by ID descending
// (most recent first), across all job names.
func ListRecentRuns(ctx context.Context, db *gorm.DB, limit int) ([]domain.SyncRun, error) {
	var out []domain.SyncRun
	err := db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
