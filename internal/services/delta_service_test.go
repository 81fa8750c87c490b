package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
	"github.com/retailpulse/go-inventory-backend/internal/repo"
)

// newServicesDB opens a throwaway SQLite database with the full schema.
func newServicesDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedTerminalRun inserts a run in the given terminal (or running) status
// with its snapshot set.
func seedTerminalRun(t *testing.T, db *gorm.DB, status string, qohBySKU map[string]int64) uint64 {
	t.Helper()
	now := time.Now().UTC()
	r := domain.SyncRun{JobName: domain.JobSyncActiveItems, StartedAt: now, FinishedAt: &now, Status: status}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seed run: %v", err)
	}
	for sku, qoh := range qohBySKU {
		s := domain.InventorySnapshot{SyncRunID: r.ID, SKU: sku, QOH: decimal.NewFromInt(qoh), CapturedAt: now}
		if err := db.Create(&s).Error; err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}
	return r.ID
}

func deltaBySKU(t *testing.T, db *gorm.DB, toRunID uint64) map[string]domain.InventoryDelta {
	t.Helper()
	rows, err := repo.ListDeltasForRun(context.Background(), db, toRunID)
	if err != nil {
		t.Fatalf("ListDeltasForRun: %v", err)
	}
	out := make(map[string]domain.InventoryDelta, len(rows))
	for _, r := range rows {
		out[r.SKU] = r
	}
	return out
}

func TestComputeBetween_FullOuterJoin(t *testing.T) {
	db := newServicesDB(t)
	svc := NewDeltaService(db)

	from := seedTerminalRun(t, db, domain.RunStatusSuccess, map[string]int64{"A": 10, "B": 5})
	to := seedTerminalRun(t, db, domain.RunStatusSuccess, map[string]int64{"B": 8, "C": 3})

	n, err := svc.ComputeBetween(context.Background(), from, to)
	if err != nil {
		t.Fatalf("ComputeBetween: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 delta rows, got %d", n)
	}

	got := deltaBySKU(t, db, to)

	// A disappeared: counted as dropping to zero.
	a := got["A"]
	if !a.FromQOH.Equal(decimal.NewFromInt(10)) || !a.ToQOH.Equal(decimal.Zero) || !a.Delta.Equal(decimal.NewFromInt(-10)) {
		t.Fatalf("unexpected A row: %+v", a)
	}
	// B present on both sides.
	b := got["B"]
	if !b.Delta.Equal(decimal.NewFromInt(3)) || !b.FromQOH.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("unexpected B row: %+v", b)
	}
	// C appeared: counted as arriving from zero.
	c := got["C"]
	if !c.FromQOH.Equal(decimal.Zero) || !c.Delta.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected C row: %+v", c)
	}
	if a.FromSyncRunID != from || a.ToSyncRunID != to {
		t.Fatalf("run ids not stamped: %+v", a)
	}
}

func TestComputeBetween_RecomputeConverges(t *testing.T) {
	db := newServicesDB(t)
	svc := NewDeltaService(db)

	from := seedTerminalRun(t, db, domain.RunStatusSuccess, map[string]int64{"A": 10})
	to := seedTerminalRun(t, db, domain.RunStatusSuccess, map[string]int64{"A": 7})

	if _, err := svc.ComputeBetween(context.Background(), from, to); err != nil {
		t.Fatalf("first compute: %v", err)
	}
	if _, err := svc.ComputeBetween(context.Background(), from, to); err != nil {
		t.Fatalf("second compute: %v", err)
	}

	var count int64
	if err := db.Model(&domain.InventoryDelta{}).Where("to_sync_run_id = ?", to).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("recompute duplicated rows: %d", count)
	}
	if d := deltaBySKU(t, db, to)["A"]; !d.Delta.Equal(decimal.NewFromInt(-3)) {
		t.Fatalf("unexpected delta after recompute: %+v", d)
	}
}

func TestComputeBetween_EmptySideIsPreconditionFailure(t *testing.T) {
	db := newServicesDB(t)
	svc := NewDeltaService(db)

	from := seedTerminalRun(t, db, domain.RunStatusSuccess, nil)
	to := seedTerminalRun(t, db, domain.RunStatusSuccess, map[string]int64{"A": 1})

	_, err := svc.ComputeBetween(context.Background(), from, to)
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}

	// Nothing may be written on a precondition failure.
	var count int64
	if err := db.Model(&domain.InventoryDelta{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("precondition failure wrote %d rows", count)
	}
}

func TestComputeForRun_SkipsFailedBaselineCandidates(t *testing.T) {
	db := newServicesDB(t)
	svc := NewDeltaService(db)

	// Success, then a failed run, then the run under computation. The
	// failed run must not become the baseline.
	base := seedTerminalRun(t, db, domain.RunStatusSuccess, map[string]int64{"A": 10})
	seedTerminalRun(t, db, domain.RunStatusFailed, map[string]int64{"A": 99})
	to := seedTerminalRun(t, db, domain.RunStatusSuccess, map[string]int64{"A": 4})

	n, err := svc.ComputeForRun(context.Background(), to, false)
	if err != nil {
		t.Fatalf("ComputeForRun: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 delta row, got %d", n)
	}
	d := deltaBySKU(t, db, to)["A"]
	if d.FromSyncRunID != base || !d.Delta.Equal(decimal.NewFromInt(-6)) {
		t.Fatalf("baseline selection wrong: %+v", d)
	}
}

func TestComputeForRun_FailedTargetNeedsAllowFailed(t *testing.T) {
	db := newServicesDB(t)
	svc := NewDeltaService(db)

	seedTerminalRun(t, db, domain.RunStatusSuccess, map[string]int64{"A": 10})
	to := seedTerminalRun(t, db, domain.RunStatusFailed, map[string]int64{"A": 6})

	if _, err := svc.ComputeForRun(context.Background(), to, false); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition for failed target, got %v", err)
	}

	// Backfill mode accepts a failed run that still captured snapshots.
	n, err := svc.ComputeForRun(context.Background(), to, true)
	if err != nil {
		t.Fatalf("ComputeForRun allow_failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 delta row, got %d", n)
	}
}

func TestComputeForRun_MissingRunAndNoBaseline(t *testing.T) {
	db := newServicesDB(t)
	svc := NewDeltaService(db)

	if _, err := svc.ComputeForRun(context.Background(), 42, false); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition for missing run, got %v", err)
	}

	// First-ever capture: no baseline, no error, nothing written.
	to := seedTerminalRun(t, db, domain.RunStatusSuccess, map[string]int64{"A": 1})
	n, err := svc.ComputeForRun(context.Background(), to, false)
	if err != nil {
		t.Fatalf("ComputeForRun: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 rows without a baseline, got %d", n)
	}
}

func TestDiffSnapshots_DecimalQuantities(t *testing.T) {
	from := map[string]domain.InventorySnapshot{
		"A": {SKU: "A", QOH: decimal.RequireFromString("10.75")},
	}
	to := map[string]domain.InventorySnapshot{
		"A": {SKU: "A", QOH: decimal.RequireFromString("9.25")},
	}
	rows := diffSnapshots(1, 2, from, to, time.Now().UTC())
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !rows[0].Delta.Equal(decimal.RequireFromString("-1.5")) {
		t.Fatalf("fractional delta wrong: %v", rows[0].Delta)
	}
}
