// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// by the data-freshness endpoint. Each function is context-aware and safe to
// call from services or handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
)

// FreshnessStats is the latest-write watermark of each derived dataset.
// A nil/empty field means the corresponding table has no rows yet.
type FreshnessStats struct {
	LastDeltaComputedAt *time.Time
	LastItemUpdatedAt   *time.Time
	LastAggregatedDay   string
}

// Freshness returns the max delta ComputedAt, the max catalog UpdatedAt,
// and the latest rolled-up day. Each is read with an ordered LIMIT 1 query
// (avoid MAX() -> TEXT in SQLite).
func Freshness(ctx context.Context, db *gorm.DB) (FreshnessStats, error) {
	var out FreshnessStats

	var deltaRow struct{ ComputedAt time.Time }
	res := db.WithContext(ctx).
		Model(&domain.InventoryDelta{}).
		Select("computed_at").
		Order("computed_at DESC").
		Limit(1).
		Scan(&deltaRow)
	if res.Error != nil {
		return out, res.Error
	}
	if res.RowsAffected > 0 {
		t := deltaRow.ComputedAt
		out.LastDeltaComputedAt = &t
	}

	var itemRow struct{ UpdatedAt time.Time }
	res = db.WithContext(ctx).
		Model(&domain.ActiveItem{}).
		Select("updated_at").
		Order("updated_at DESC").
		Limit(1).
		Scan(&itemRow)
	if res.Error != nil {
		return out, res.Error
	}
	if res.RowsAffected > 0 {
		t := itemRow.UpdatedAt
		out.LastItemUpdatedAt = &t
	}

	var dayRow struct{ Day string }
	res = db.WithContext(ctx).
		Model(&domain.DailyMovement{}).
		Select("day").
		Order("day DESC").
		Limit(1).
		Scan(&dayRow)
	if res.Error != nil {
		return out, res.Error
	}
	if res.RowsAffected > 0 {
		out.LastAggregatedDay = dayRow.Day
	}

	return out, nil
}
