// Package services – SyncService
//
// This file implements the sync-run coordinator: the single write entry
// point that fetches the vendor catalog, snapshots quantity-on-hand, diffs
// against the previous capture, and refreshes the daily rollup. Every
// invocation is serialized through a database lease; every outcome is
// recorded as a sync_runs row; the lease is released on every exit path.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
	"github.com/retailpulse/go-inventory-backend/internal/eweb"
	"github.com/retailpulse/go-inventory-backend/internal/repo"
)

// CatalogFetcher is the external collaborator contract for the vendor feed.
// Implementations return the complete catalog or an error; partial data is
// never surfaced.
type CatalogFetcher interface {
	FetchAllItems(ctx context.Context) ([]eweb.CatalogItem, error)
}

// SyncService coordinates one full catalog synchronization.
type SyncService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Fetcher retrieves the vendor catalog.
	Fetcher CatalogFetcher
	// Deltas diffs the new snapshot against the previous capture.
	Deltas *DeltaService
	// Aggregates refreshes the daily rollup after a diff.
	Aggregates *AggregateService

	// LockName is the lease serializing runs of this job.
	LockName string
	// LockTTL bounds how long a crashed holder can block successors.
	LockTTL time.Duration
	// SnapshotBatch is the row chunk size for snapshot and item writes.
	SnapshotBatch int
}

// NewSyncService constructs a SyncService with its collaborators.
func NewSyncService(db *gorm.DB, fetcher CatalogFetcher, deltas *DeltaService, aggregates *AggregateService, lockName string, lockTTL time.Duration, snapshotBatch int) *SyncService {
	if snapshotBatch < 1 {
		snapshotBatch = 500
	}
	return &SyncService{
		DB:            db,
		Fetcher:       fetcher,
		Deltas:        deltas,
		Aggregates:    aggregates,
		LockName:      lockName,
		LockTTL:       lockTTL,
		SnapshotBatch: snapshotBatch,
	}
}

// Run executes one synchronization of jobName.
//
// Sequence: acquire the lease (fail-fast, ErrLockConflict when held),
// open a running sync_runs row, fetch the catalog, upsert active items and
// flag disappeared SKUs, write the snapshot set, diff against the prior
// eligible run when one exists, refresh the recent rollup days, and close
// the run. Any error after the row opens is captured into the row's
// message with status failed; the lease is released on every path.
//
// The returned run reflects the terminal state. It is non-nil whenever a
// row was opened, including failures.
func (s *SyncService) Run(ctx context.Context, jobName string) (*domain.SyncRun, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "sync.run")
	defer span.End()
	span.SetAttributes(attribute.String("job_name", jobName))

	holder := uuid.NewString()
	acquired, err := repo.TryAcquireLock(ctx, s.DB, s.LockName, holder, s.LockTTL)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrLockConflict
	}
	defer func() {
		if err := repo.ReleaseLock(context.WithoutCancel(ctx), s.DB, s.LockName, holder); err != nil {
			log.Error().Err(err).Str("lock", s.LockName).Msg("failed to release sync lease")
		}
	}()

	run, err := repo.StartRun(ctx, s.DB, jobName)
	if err != nil {
		return nil, err
	}
	log.Info().Uint64("run_id", run.ID).Str("job_name", jobName).Msg("sync run started")

	if err := s.execute(ctx, run); err != nil {
		s.fail(ctx, run, err)
		return run, err
	}

	if err := repo.FinishRun(ctx, s.DB, run.ID, domain.RunStatusSuccess, "OK"); err != nil {
		return run, err
	}
	run.Status = domain.RunStatusSuccess
	okMsg := "OK"
	run.Message = &okMsg
	log.Info().Uint64("run_id", run.ID).Msg("sync run succeeded")
	return run, nil
}

// execute performs the fetch → upsert → snapshot → delta → rollup pipeline
// for an open run.
func (s *SyncService) execute(ctx context.Context, run *domain.SyncRun) error {
	items, err := s.Fetcher.FetchAllItems(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		// An empty catalog is treated as a feed fault, not as "everything
		// sold out": writing it would snapshot zero rows and soft-delete
		// the whole catalog.
		return &eweb.FetchError{Op: "fetch", Err: errors.New("catalog response contained no items")}
	}

	now := time.Now().UTC()
	rows := make([]domain.ActiveItem, 0, len(items))
	snaps := make([]domain.InventorySnapshot, 0, len(items))
	skus := make([]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, catalogToActiveItem(it, now))
		snaps = append(snaps, domain.InventorySnapshot{
			SyncRunID:  run.ID,
			SKU:        it.SKU,
			QOH:        it.QOH,
			CapturedAt: now,
		})
		skus = append(skus, it.SKU)
	}

	if err := repo.UpsertItems(ctx, s.DB, rows, s.SnapshotBatch); err != nil {
		return fmt.Errorf("upsert items: %w", err)
	}
	flagged, err := repo.SoftDeleteMissing(ctx, s.DB, skus)
	if err != nil {
		return fmt.Errorf("flag missing items: %w", err)
	}
	if err := repo.ReplaceSnapshots(ctx, s.DB, snaps, s.SnapshotBatch); err != nil {
		return fmt.Errorf("write snapshots: %w", err)
	}
	log.Info().
		Uint64("run_id", run.ID).
		Int("items", len(rows)).
		Int64("flagged_deleted", flagged).
		Msg("catalog captured")

	prior, err := repo.SelectPriorRun(ctx, s.DB, run.JobName, run.ID)
	if err != nil {
		return err
	}
	if prior == nil {
		log.Info().Uint64("run_id", run.ID).Msg("first eligible capture, skipping delta step")
		return nil
	}

	if _, err := s.Deltas.ComputeBetween(ctx, prior.ID, run.ID); err != nil {
		return fmt.Errorf("compute deltas: %w", err)
	}
	if err := s.Aggregates.RecomputeRecent(ctx); err != nil {
		return fmt.Errorf("recompute daily movement: %w", err)
	}
	return nil
}

// fail records the error as the run's terminal message. The recording write
// uses a detached context so a canceled request cannot leave the row
// running forever.
func (s *SyncService) fail(ctx context.Context, run *domain.SyncRun, cause error) {
	msg := cause.Error()
	if len(msg) > 2000 {
		msg = msg[:2000]
	}
	if err := repo.FinishRun(context.WithoutCancel(ctx), s.DB, run.ID, domain.RunStatusFailed, msg); err != nil {
		log.Error().Err(err).Uint64("run_id", run.ID).Msg("failed to record run failure")
		return
	}
	run.Status = domain.RunStatusFailed
	run.Message = &msg
	log.Error().Err(cause).Uint64("run_id", run.ID).Msg("sync run failed")
}

// catalogToActiveItem maps a fetched catalog row onto the persisted model.
func catalogToActiveItem(it eweb.CatalogItem, now time.Time) domain.ActiveItem {
	return domain.ActiveItem{
		SKU:            it.SKU,
		Barcode:        it.Barcode,
		BrandID:        it.BrandID,
		CategoryID:     it.CategoryID,
		VendorID:       it.VendorID,
		Description:    it.Description,
		RetailPrice:    it.RetailPrice,
		CurrentPrice:   it.CurrentPrice,
		Price:          it.Price,
		QOH:            it.QOH,
		UOM:            it.UOM,
		UpdateDateTime: it.UpdateDateTime,
		IsDeleted:      false,
		DeletedAt:      nil,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
