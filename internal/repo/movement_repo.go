// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// DailyMovement model: the materialized per-day, per-SKU delta rollup.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
)

// ReplaceDay swaps in the recomputed rollup rows for one UTC day inside a
// single transaction: existing rows for the day are deleted, then rows is
// inserted. rows may be empty, which clears the day. The table is always
// re-derived from deltas, never incremented.
func ReplaceDay(ctx context.Context, db *gorm.DB, day string, rows []domain.DailyMovement) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("day = ?", day).Delete(&domain.DailyMovement{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
}

// ListMovementRange returns rollup rows with day in [fromDay, toDay]
// (inclusive "YYYY-MM-DD" bounds), ordered by day then SKU.
func ListMovementRange(ctx context.Context, db *gorm.DB, fromDay, toDay string) ([]domain.DailyMovement, error) {
	var out []domain.DailyMovement
	err := db.WithContext(ctx).
		Where("day >= ? AND day <= ?", fromDay, toDay).
		Order("day ASC, sku ASC").
		Find(&out).Error
	return out, err
}
