// Package services – DeltaService
//
// This file implements the snapshot diff engine. Given two sync runs, it
// full-outer-joins their snapshot sets by SKU and writes one delta row per
// SKU appearing on either side. A SKU missing from the baseline is treated
// as arriving from zero; a SKU missing from the target is treated as
// dropping to zero. The write is an idempotent upsert keyed by
// (to_sync_run_id, sku), so recomputation always converges on the same
// rows. Arithmetic is decimal end to end.
package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
	"github.com/retailpulse/go-inventory-backend/internal/repo"
)

// DeltaService computes and persists per-SKU quantity deltas between the
// snapshot sets of two sync runs.
type DeltaService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
}

// NewDeltaService constructs a DeltaService.
func NewDeltaService(db *gorm.DB) *DeltaService {
	return &DeltaService{DB: db}
}

// ComputeForRun recomputes deltas for an existing to-run, selecting the
// baseline the same way the sync coordinator does: the most recent earlier
// successful run of the same job with at least one snapshot. Used for
// backfill. The to-run must be successful unless allowFailed is set
// (a failed run may still have captured snapshots worth diffing).
//
// Returns the number of delta rows written. ErrPrecondition is returned
// when the to-run is missing, ineligible, or either side has no snapshots;
// a to-run with no eligible baseline yields (0, nil), matching the
// coordinator's skip.
func (s *DeltaService) ComputeForRun(ctx context.Context, toRunID uint64, allowFailed bool) (int, error) {
	toRun, err := repo.GetRun(ctx, s.DB, toRunID)
	if err != nil {
		if err == repo.ErrNotFound {
			return 0, fmt.Errorf("%w: run %d does not exist", ErrPrecondition, toRunID)
		}
		return 0, err
	}
	if toRun.Status != domain.RunStatusSuccess && !allowFailed {
		return 0, fmt.Errorf("%w: run %d has status %s", ErrPrecondition, toRunID, toRun.Status)
	}

	prior, err := repo.SelectPriorRun(ctx, s.DB, toRun.JobName, toRun.ID)
	if err != nil {
		return 0, err
	}
	if prior == nil {
		log.Info().Uint64("to_run_id", toRunID).Msg("no eligible baseline run, skipping delta computation")
		return 0, nil
	}
	return s.ComputeBetween(ctx, prior.ID, toRun.ID)
}

// ComputeBetween diffs the snapshot sets of fromRunID and toRunID and
// upserts the resulting delta rows in one transaction. Both sides must have
// at least one snapshot row; otherwise ErrPrecondition is returned and
// nothing is written. Every delta row of the batch carries the same
// ComputedAt stamp.
func (s *DeltaService) ComputeBetween(ctx context.Context, fromRunID, toRunID uint64) (int, error) {
	ctx, span := otel.Tracer("services").Start(ctx, "delta.compute")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("from_run_id", int64(fromRunID)),
		attribute.Int64("to_run_id", int64(toRunID)),
	)

	fromSnap, err := repo.SnapshotMap(ctx, s.DB, fromRunID)
	if err != nil {
		return 0, err
	}
	toSnap, err := repo.SnapshotMap(ctx, s.DB, toRunID)
	if err != nil {
		return 0, err
	}
	if len(fromSnap) == 0 {
		return 0, fmt.Errorf("%w: run %d has no snapshot rows", ErrPrecondition, fromRunID)
	}
	if len(toSnap) == 0 {
		return 0, fmt.Errorf("%w: run %d has no snapshot rows", ErrPrecondition, toRunID)
	}

	rows := diffSnapshots(fromRunID, toRunID, fromSnap, toSnap, time.Now().UTC())
	if err := repo.UpsertDeltas(ctx, s.DB, rows); err != nil {
		return 0, err
	}

	log.Info().
		Uint64("from_run_id", fromRunID).
		Uint64("to_run_id", toRunID).
		Int("rows", len(rows)).
		Msg("deltas computed")
	return len(rows), nil
}

// diffSnapshots is the pure join: one output row per SKU in the union of
// both sets, with a missing side contributing zero.
func diffSnapshots(fromRunID, toRunID uint64, from, to map[string]domain.InventorySnapshot, at time.Time) []domain.InventoryDelta {
	skus := make(map[string]struct{}, len(from)+len(to))
	for sku := range from {
		skus[sku] = struct{}{}
	}
	for sku := range to {
		skus[sku] = struct{}{}
	}

	ordered := make([]string, 0, len(skus))
	for sku := range skus {
		ordered = append(ordered, sku)
	}
	sort.Strings(ordered)

	rows := make([]domain.InventoryDelta, 0, len(ordered))
	for _, sku := range ordered {
		fromQOH := decimal.Zero
		if s, ok := from[sku]; ok {
			fromQOH = s.QOH
		}
		toQOH := decimal.Zero
		if s, ok := to[sku]; ok {
			toQOH = s.QOH
		}
		rows = append(rows, domain.InventoryDelta{
			ToSyncRunID:   toRunID,
			SKU:           sku,
			FromSyncRunID: fromRunID,
			FromQOH:       fromQOH,
			ToQOH:         toQOH,
			Delta:         toQOH.Sub(fromQOH),
			ComputedAt:    at,
		})
	}
	return rows
}
