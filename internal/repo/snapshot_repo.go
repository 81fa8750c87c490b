// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// InventorySnapshot model: the per-run quantity-on-hand capture that delta
// computation diffs.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
)

// ReplaceSnapshots writes the full snapshot set for one run. Rows are
// inserted in chunks of batch inside a single transaction; a conflicting
// (sync_run_id, sku) row is overwritten so a retried run converges on the
// same set instead of failing on the unique key.
func ReplaceSnapshots(ctx context.Context, db *gorm.DB, rows []domain.InventorySnapshot, batch int) error {
	if len(rows) == 0 {
		return nil
	}
	if batch < 1 {
		batch = 1
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(rows); start += batch {
			end := start + batch
			if end > len(rows) {
				end = len(rows)
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "sync_run_id"}, {Name: "sku"}},
				DoUpdates: clause.AssignmentColumns([]string{"qoh", "captured_at"}),
			}).Create(rows[start:end]).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// CountSnapshots returns the number of snapshot rows captured by run id.
func CountSnapshots(ctx context.Context, db *gorm.DB, runID uint64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.InventorySnapshot{}).
		Where("sync_run_id = ?", runID).
		Count(&total).Error
	return total, err
}

// SnapshotMap loads run id's snapshot set as a SKU-keyed map, the shape the
// delta engine joins over.
func SnapshotMap(ctx context.Context, db *gorm.DB, runID uint64) (map[string]domain.InventorySnapshot, error) {
	var rows []domain.InventorySnapshot
	err := db.WithContext(ctx).
		Where("sync_run_id = ?", runID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.InventorySnapshot, len(rows))
	for _, r := range rows {
		out[r.SKU] = r
	}
	return out, nil
}
