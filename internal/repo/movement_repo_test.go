package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
)

func newMovementRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("movement_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.DailyMovement{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func movement(day, sku string, deltaSum int64) domain.DailyMovement {
	d := decimal.NewFromInt(deltaSum)
	return domain.DailyMovement{
		Day:         day,
		SKU:         sku,
		DeltaSum:    d,
		AbsSum:      d.Abs(),
		NegAbsSum:   decimal.Zero,
		PosSum:      decimal.Zero,
		EventsCount: 1,
	}
}

func TestReplaceDay_SwapsRowsForTheDayOnly(t *testing.T) {
	db := newMovementRepoDB(t)
	ctx := context.Background()

	if err := ReplaceDay(ctx, db, "2025-06-10", []domain.DailyMovement{
		movement("2025-06-10", "A", -3),
		movement("2025-06-10", "B", 2),
	}); err != nil {
		t.Fatalf("ReplaceDay: %v", err)
	}
	if err := ReplaceDay(ctx, db, "2025-06-11", []domain.DailyMovement{
		movement("2025-06-11", "A", 5),
	}); err != nil {
		t.Fatalf("ReplaceDay: %v", err)
	}

	// Recompute 06-10 with a different row set; 06-11 must be untouched.
	if err := ReplaceDay(ctx, db, "2025-06-10", []domain.DailyMovement{
		movement("2025-06-10", "C", -7),
	}); err != nil {
		t.Fatalf("ReplaceDay (recompute): %v", err)
	}

	got, err := ListMovementRange(ctx, db, "2025-06-10", "2025-06-11")
	if err != nil {
		t.Fatalf("ListMovementRange: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows after recompute, got %d: %+v", len(got), got)
	}
	if got[0].Day != "2025-06-10" || got[0].SKU != "C" {
		t.Fatalf("recomputed day has stale rows: %+v", got[0])
	}
	if got[1].Day != "2025-06-11" || got[1].SKU != "A" {
		t.Fatalf("neighboring day was touched: %+v", got[1])
	}
}

func TestReplaceDay_EmptySetClearsTheDay(t *testing.T) {
	db := newMovementRepoDB(t)
	ctx := context.Background()

	if err := ReplaceDay(ctx, db, "2025-06-10", []domain.DailyMovement{movement("2025-06-10", "A", 1)}); err != nil {
		t.Fatalf("ReplaceDay: %v", err)
	}
	if err := ReplaceDay(ctx, db, "2025-06-10", nil); err != nil {
		t.Fatalf("ReplaceDay (clear): %v", err)
	}

	got, err := ListMovementRange(ctx, db, "2025-06-10", "2025-06-10")
	if err != nil {
		t.Fatalf("ListMovementRange: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected cleared day, got %+v", got)
	}
}

func TestListMovementRange_InclusiveBoundsAndOrder(t *testing.T) {
	db := newMovementRepoDB(t)
	ctx := context.Background()

	for _, m := range []domain.DailyMovement{
		movement("2025-06-09", "A", 1),
		movement("2025-06-10", "B", 2),
		movement("2025-06-10", "A", 3),
		movement("2025-06-12", "A", 4),
	} {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	got, err := ListMovementRange(ctx, db, "2025-06-09", "2025-06-10")
	if err != nil {
		t.Fatalf("ListMovementRange: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	if got[0].Day != "2025-06-09" || got[1].SKU != "A" || got[2].SKU != "B" {
		t.Fatalf("unexpected ordering: %+v", got)
	}
}
