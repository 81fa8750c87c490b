// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ActiveItem
// model: the current vendor catalog rows the analytics endpoints read.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
//
// Functions:
//
//   - UpsertItems(ctx, db, items, batch) -> error
//     Chunked upsert of the latest catalog rows, keyed by SKU.
//
//   - SoftDeleteMissing(ctx, db, presentSKUs) -> (int64, error)
//     Marks rows absent from the latest feed as deleted.
//
//   - GetItem(ctx, db, sku) -> *domain.ActiveItem, error
//     Fetches one catalog row, or ErrNotFound.
//
//   - SearchItems, ListOutOfStock, ListLowStock
//     Read-only catalog views for the analytics layer.
package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
)

// UpsertItems writes the latest catalog rows in chunks of batch inside a
// single transaction. A conflicting SKU is updated in place and revived if
// it had been soft-deleted.
func UpsertItems(ctx context.Context, db *gorm.DB, items []domain.ActiveItem, batch int) error {
	if len(items) == 0 {
		return nil
	}
	if batch < 1 {
		batch = 1
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(items); start += batch {
			end := start + batch
			if end > len(items) {
				end = len(items)
			}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "sku"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"barcode", "brand_id", "category_id", "vendor_id", "description",
					"retail_price", "current_price", "price", "qoh", "uom",
					"update_datetime", "is_deleted", "deleted_at", "updated_at",
				}),
			}).Create(items[start:end]).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// SoftDeleteMissing marks every live row whose SKU is not in presentSKUs as
// deleted, stamping DeletedAt. It returns the number of rows flagged. An
// empty presentSKUs is rejected upstream; here it would flag the whole
// catalog, so callers guard against passing it.
func SoftDeleteMissing(ctx context.Context, db *gorm.DB, presentSKUs []string) (int64, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.ActiveItem{}).
		Where("is_deleted = ? AND sku NOT IN ?", false, presentSKUs).
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": now,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

// GetItem fetches a single catalog row by SKU, or ErrNotFound if missing.
func GetItem(ctx context.Context, db *gorm.DB, sku string) (*domain.ActiveItem, error) {
	var it domain.ActiveItem
	if err := db.WithContext(ctx).First(&it, "sku = ?", sku).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// SearchItems returns up to limit live catalog rows whose SKU, barcode, or
// description contains q (case-insensitive), ordered by SKU.
func SearchItems(ctx context.Context, db *gorm.DB, q string, limit int) ([]domain.ActiveItem, error) {
	var out []domain.ActiveItem
	like := "%" + q + "%"
	err := db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("sku LIKE ? OR barcode LIKE ? OR description LIKE ?", like, like, like).
		Order("sku ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListOutOfStock returns up to limit live rows with QOH <= 0, ordered by SKU.
func ListOutOfStock(ctx context.Context, db *gorm.DB, limit int) ([]domain.ActiveItem, error) {
	var out []domain.ActiveItem
	err := db.WithContext(ctx).
		Where("is_deleted = ? AND qoh <= 0", false).
		Order("sku ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListLowStock returns up to limit live rows with 0 < QOH <= threshold,
// ordered by QOH ascending then SKU.
func ListLowStock(ctx context.Context, db *gorm.DB, threshold decimal.Decimal, limit int) ([]domain.ActiveItem, error) {
	var out []domain.ActiveItem
	err := db.WithContext(ctx).
		Where("is_deleted = ? AND qoh > 0 AND qoh <= ?", false, threshold).
		Order("qoh ASC, sku ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ItemsBySKU loads the catalog rows for the given SKUs as a SKU-keyed map.
// Used by the analytics layer to attach price and description to delta rows.
func ItemsBySKU(ctx context.Context, db *gorm.DB, skus []string) (map[string]domain.ActiveItem, error) {
	out := make(map[string]domain.ActiveItem, len(skus))
	if len(skus) == 0 {
		return out, nil
	}
	var rows []domain.ActiveItem
	if err := db.WithContext(ctx).Where("sku IN ?", skus).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.SKU] = r
	}
	return out, nil
}
