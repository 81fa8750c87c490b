package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
	"github.com/retailpulse/go-inventory-backend/internal/eweb"
	"github.com/retailpulse/go-inventory-backend/internal/repo"
)

// fakeFetcher returns scripted catalogs, one per call.
type fakeFetcher struct {
	batches [][]eweb.CatalogItem
	errs    []error
	calls   int
}

func (f *fakeFetcher) FetchAllItems(ctx context.Context) ([]eweb.CatalogItem, error) {
	i := f.calls
	f.calls++
	var items []eweb.CatalogItem
	if i < len(f.batches) {
		items = f.batches[i]
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return items, err
}

func catalog(qohBySKU map[string]int64) []eweb.CatalogItem {
	out := make([]eweb.CatalogItem, 0, len(qohBySKU))
	for sku, qoh := range qohBySKU {
		out = append(out, eweb.CatalogItem{SKU: sku, QOH: decimal.NewFromInt(qoh)})
	}
	return out
}

func newSyncService(db *gorm.DB, f CatalogFetcher) *SyncService {
	return NewSyncService(db, f, NewDeltaService(db), NewAggregateService(db), "sync_test", time.Minute, 500)
}

func TestSyncRun_FirstCaptureSkipsDeltas(t *testing.T) {
	db := newServicesDB(t)
	svc := newSyncService(db, &fakeFetcher{batches: [][]eweb.CatalogItem{catalog(map[string]int64{"A": 10, "B": 5})}})

	run, err := svc.Run(context.Background(), domain.JobSyncActiveItems)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != domain.RunStatusSuccess {
		t.Fatalf("run not successful: %+v", run)
	}

	n, err := repo.CountSnapshots(context.Background(), db, run.ID)
	if err != nil || n != 2 {
		t.Fatalf("snapshots: n=%d err=%v", n, err)
	}
	var deltas int64
	if err := db.Model(&domain.InventoryDelta{}).Count(&deltas).Error; err != nil {
		t.Fatalf("count deltas: %v", err)
	}
	if deltas != 0 {
		t.Fatalf("first capture must not produce deltas, got %d", deltas)
	}
	if _, err := repo.GetItem(context.Background(), db, "A"); err != nil {
		t.Fatalf("catalog row not upserted: %v", err)
	}
}

func TestSyncRun_SecondCaptureProducesDeltasAndRollup(t *testing.T) {
	db := newServicesDB(t)
	svc := newSyncService(db, &fakeFetcher{batches: [][]eweb.CatalogItem{
		catalog(map[string]int64{"A": 10, "B": 5}),
		catalog(map[string]int64{"B": 8, "C": 3}),
	}})
	ctx := context.Background()

	first, err := svc.Run(ctx, domain.JobSyncActiveItems)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.Run(ctx, domain.JobSyncActiveItems)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	rows, err := repo.ListDeltasForRun(ctx, db, second.ID)
	if err != nil {
		t.Fatalf("ListDeltasForRun: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 delta rows, got %d", len(rows))
	}
	for _, r := range rows {
		if r.FromSyncRunID != first.ID {
			t.Fatalf("baseline wrong: %+v", r)
		}
	}

	// The SKU that vanished is soft-deleted in the catalog.
	a, err := repo.GetItem(ctx, db, "A")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if !a.IsDeleted {
		t.Fatalf("vanished SKU not flagged: %+v", a)
	}

	// Today's rollup bucket exists.
	day := time.Now().UTC().Format("2006-01-02")
	buckets, err := repo.ListMovementRange(ctx, db, day, day)
	if err != nil {
		t.Fatalf("ListMovementRange: %v", err)
	}
	if len(buckets) == 0 {
		t.Fatalf("daily rollup not refreshed")
	}
}

func TestSyncRun_FetchFailureRecordsFailedRunWithoutSnapshots(t *testing.T) {
	db := newServicesDB(t)
	fetchErr := &eweb.FetchError{Op: "fetch", Err: errors.New("gateway timeout")}
	svc := newSyncService(db, &fakeFetcher{errs: []error{fetchErr}})
	ctx := context.Background()

	run, err := svc.Run(ctx, domain.JobSyncActiveItems)
	if err == nil {
		t.Fatalf("expected fetch error")
	}
	var fe *eweb.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %v", err)
	}

	got, err := repo.GetRun(ctx, db, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != domain.RunStatusFailed || got.Message == nil || *got.Message == "" {
		t.Fatalf("failure not captured: %+v", got)
	}
	n, err := repo.CountSnapshots(ctx, db, run.ID)
	if err != nil || n != 0 {
		t.Fatalf("failed run must have no snapshots: n=%d err=%v", n, err)
	}
}

func TestSyncRun_EmptyCatalogIsAFetchFault(t *testing.T) {
	db := newServicesDB(t)
	svc := newSyncService(db, &fakeFetcher{batches: [][]eweb.CatalogItem{nil}})

	run, err := svc.Run(context.Background(), domain.JobSyncActiveItems)
	var fe *eweb.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError for empty catalog, got %v", err)
	}
	if run.Status != domain.RunStatusFailed {
		t.Fatalf("run should be failed: %+v", run)
	}
}

func TestSyncRun_LockConflict(t *testing.T) {
	db := newServicesDB(t)
	svc := newSyncService(db, &fakeFetcher{batches: [][]eweb.CatalogItem{catalog(map[string]int64{"A": 1})}})
	ctx := context.Background()

	// Another process holds the lease.
	if ok, err := repo.TryAcquireLock(ctx, db, "sync_test", "other-holder", time.Minute); err != nil || !ok {
		t.Fatalf("seed lock: ok=%v err=%v", ok, err)
	}

	if _, err := svc.Run(ctx, domain.JobSyncActiveItems); !errors.Is(err, ErrLockConflict) {
		t.Fatalf("expected ErrLockConflict, got %v", err)
	}
	var runs int64
	if err := db.Model(&domain.SyncRun{}).Count(&runs).Error; err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if runs != 0 {
		t.Fatalf("conflicting invocation must not open a run, got %d", runs)
	}
}

func TestSyncRun_LockReleasedAfterFailure(t *testing.T) {
	db := newServicesDB(t)
	svc := newSyncService(db, &fakeFetcher{
		errs:    []error{&eweb.FetchError{Op: "fetch", Err: errors.New("down")}},
		batches: [][]eweb.CatalogItem{nil, catalog(map[string]int64{"A": 1})},
	})
	ctx := context.Background()

	if _, err := svc.Run(ctx, domain.JobSyncActiveItems); err == nil {
		t.Fatalf("expected first run to fail")
	}

	// The lease must be free for the next invocation.
	run, err := svc.Run(ctx, domain.JobSyncActiveItems)
	if err != nil {
		t.Fatalf("second run after failure: %v", err)
	}
	if run.Status != domain.RunStatusSuccess {
		t.Fatalf("second run not successful: %+v", run)
	}
}

func TestSyncRun_BaselineSkipsFailedIntermediateRun(t *testing.T) {
	db := newServicesDB(t)
	svc := newSyncService(db, &fakeFetcher{
		batches: [][]eweb.CatalogItem{
			catalog(map[string]int64{"A": 10}), // run 1: success
			nil,                                // run 2: fetch failure
			catalog(map[string]int64{"A": 4}),  // run 3: success
		},
		errs: []error{nil, &eweb.FetchError{Op: "fetch", Err: errors.New("down")}, nil},
	})
	ctx := context.Background()

	first, err := svc.Run(ctx, domain.JobSyncActiveItems)
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	if _, err := svc.Run(ctx, domain.JobSyncActiveItems); err == nil {
		t.Fatalf("run 2 should fail")
	}
	third, err := svc.Run(ctx, domain.JobSyncActiveItems)
	if err != nil {
		t.Fatalf("run 3: %v", err)
	}

	// The diff spans the failed run: baseline is run 1.
	rows, err := repo.ListDeltasForRun(ctx, db, third.ID)
	if err != nil {
		t.Fatalf("ListDeltasForRun: %v", err)
	}
	if len(rows) != 1 || rows[0].FromSyncRunID != first.ID {
		t.Fatalf("baseline should be run %d: %+v", first.ID, rows)
	}
	if !rows[0].Delta.Equal(decimal.NewFromInt(-6)) {
		t.Fatalf("unexpected delta: %+v", rows[0])
	}
}
