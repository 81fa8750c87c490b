// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// InventoryDelta model: per-SKU quantity changes between two snapshots.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
)

// UpsertDeltas writes the delta set for one to-run in a single transaction.
// Conflicts on (to_sync_run_id, sku) overwrite the existing row, so
// recomputing a run's deltas is idempotent.
func UpsertDeltas(ctx context.Context, db *gorm.DB, rows []domain.InventoryDelta) error {
	if len(rows) == 0 {
		return nil
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "to_sync_run_id"}, {Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"from_sync_run_id", "from_qoh", "to_qoh", "delta", "computed_at",
			}),
		}).CreateInBatches(rows, 500).Error
	})
}

// ListDeltasForWindow returns all deltas with ComputedAt in [from, to),
// ordered by ComputedAt then SKU for stable iteration.
func ListDeltasForWindow(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.InventoryDelta, error) {
	var out []domain.InventoryDelta
	err := db.WithContext(ctx).
		Where("computed_at >= ? AND computed_at < ?", from, to).
		Order("computed_at ASC, sku ASC").
		Find(&out).Error
	return out, err
}

// RunDelta is a delta row joined with its to-run's start time. Analytics
// windows over "runs since T" scan these.
type RunDelta struct {
	SKU         string
	Delta       decimal.Decimal
	ToSyncRunID uint64
	StartedAt   time.Time
}

// ListRunDeltasSince returns every delta whose to-run belongs to jobName,
// finished successfully, and started at or after since.
func ListRunDeltasSince(ctx context.Context, db *gorm.DB, jobName string, since time.Time) ([]RunDelta, error) {
	var out []RunDelta
	err := db.WithContext(ctx).
		Table("inventory_deltas d").
		Select("d.sku AS sku, d.delta AS delta, d.to_sync_run_id AS to_sync_run_id, r.started_at AS started_at").
		Joins("INNER JOIN sync_runs r ON r.id = d.to_sync_run_id").
		Where("r.job_name = ? AND r.status = ? AND r.started_at >= ?", jobName, domain.RunStatusSuccess, since).
		Order("d.to_sync_run_id ASC, d.sku ASC").
		Scan(&out).Error
	return out, err
}

// ListDeltasForRun returns the delta rows written for to-run id.
func ListDeltasForRun(ctx context.Context, db *gorm.DB, toRunID uint64) ([]domain.InventoryDelta, error) {
	var out []domain.InventoryDelta
	err := db.WithContext(ctx).
		Where("to_sync_run_id = ?", toRunID).
		Order("sku ASC").
		Find(&out).Error
	return out, err
}
