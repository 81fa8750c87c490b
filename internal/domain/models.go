// Package domain defines the persistence-layer entities for the inventory
// sync and analytics backend.
//
// The models map to relational tables via GORM tags. Quantities and prices
// are decimal-valued (shopspring/decimal) so repeated aggregation never
// accumulates float rounding error; SQLite stores them as numeric text.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sync run statuses. A run starts as running and moves to exactly one of
// the terminal states; terminal rows are never updated again.
const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// JobSyncActiveItems is the job name recorded by the catalog sync
// coordinator. Prior-run selection for delta computation filters on it.
const JobSyncActiveItems = "sync-active-items-latest"

// SyncRun is one execution of an ingestion job. IDs are auto-incremented,
// so a higher ID always means a later run of the same job.
//
// Fields:
//   - ID: monotonic run identifier
//   - JobName: which job produced the run (e.g. JobSyncActiveItems)
//   - StartedAt / FinishedAt: UTC lifecycle timestamps (FinishedAt nil while running)
//   - Status: running | success | failed
//   - Message: terminal outcome detail ("OK" or the captured error)
type SyncRun struct {
	ID         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	JobName    string     `gorm:"type:varchar(64);not null;index:idx_runs_job_status,priority:1" json:"job_name"`
	StartedAt  time.Time  `gorm:"not null;index" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `gorm:"type:varchar(16);not null;index:idx_runs_job_status,priority:2;check:status IN ('running','success','failed')" json:"status"`
	Message    *string    `gorm:"type:text" json:"message,omitempty"`
}

// TableName overrides the default table name.
func (SyncRun) TableName() string { return "sync_runs" }

// InventorySnapshot is the quantity-on-hand of one SKU as observed by one
// sync run. Rows are append-only: (SyncRunID, SKU) is the composite key and
// a run's snapshot set is written once.
type InventorySnapshot struct {
	SyncRunID  uint64          `gorm:"primaryKey;autoIncrement:false" json:"sync_run_id"`
	SKU        string          `gorm:"primaryKey;type:varchar(64);column:sku" json:"sku"`
	QOH        decimal.Decimal `gorm:"type:numeric;not null;column:qoh" json:"qoh"`
	CapturedAt time.Time       `gorm:"not null" json:"captured_at"`
}

// TableName overrides the default table name.
func (InventorySnapshot) TableName() string { return "inventory_snapshots" }

// InventoryDelta is the per-SKU quantity change between two snapshots.
// Keyed by (ToSyncRunID, SKU) so recomputing deltas for a run is an
// idempotent upsert. Delta = ToQOH - FromQOH; a missing side is treated
// as zero.
type InventoryDelta struct {
	ToSyncRunID   uint64          `gorm:"primaryKey;autoIncrement:false" json:"to_sync_run_id"`
	SKU           string          `gorm:"primaryKey;type:varchar(64);column:sku;index:idx_delta_time_sku,priority:2" json:"sku"`
	FromSyncRunID uint64          `gorm:"not null;index" json:"from_sync_run_id"`
	FromQOH       decimal.Decimal `gorm:"type:numeric;not null;column:from_qoh" json:"from_qoh"`
	ToQOH         decimal.Decimal `gorm:"type:numeric;not null;column:to_qoh" json:"to_qoh"`
	Delta         decimal.Decimal `gorm:"type:numeric;not null" json:"delta"`
	ComputedAt    time.Time       `gorm:"not null;index:idx_delta_time_sku,priority:1" json:"computed_at"`
}

// TableName overrides the default table name.
func (InventoryDelta) TableName() string { return "inventory_deltas" }

// DailyMovement is the materialized per-day, per-SKU rollup of deltas.
// Day is the UTC calendar date ("YYYY-MM-DD") of the deltas' ComputedAt.
// Rows are always re-derived from inventory_deltas, never incremented.
//
// Sums:
//   - DeltaSum: signed net change
//   - AbsSum: sum of |delta|
//   - NegAbsSum: sum of |delta| over negative deltas (inferred sales volume)
//   - PosSum: sum of delta over positive deltas (restock volume)
//   - EventsCount: number of delta rows folded in
type DailyMovement struct {
	Day         string          `gorm:"primaryKey;type:char(10)" json:"day"`
	SKU         string          `gorm:"primaryKey;type:varchar(64);column:sku" json:"sku"`
	DeltaSum    decimal.Decimal `gorm:"type:numeric;not null" json:"delta_sum"`
	AbsSum      decimal.Decimal `gorm:"type:numeric;not null" json:"abs_sum"`
	NegAbsSum   decimal.Decimal `gorm:"type:numeric;not null" json:"neg_abs_sum"`
	PosSum      decimal.Decimal `gorm:"type:numeric;not null" json:"pos_sum"`
	EventsCount int64           `gorm:"not null" json:"events_count"`
}

// TableName overrides the default table name.
func (DailyMovement) TableName() string { return "inventory_movement_daily" }

// SyncLock is a lease row serializing sync job executions across processes.
// Acquisition is fail-fast: a live lease (ExpiresAt in the future) blocks
// other holders; an expired lease may be taken over. Holder is a UUID so
// release only deletes the caller's own lease.
type SyncLock struct {
	Name       string    `gorm:"primaryKey;type:varchar(64)" json:"name"`
	Holder     string    `gorm:"type:char(36);not null" json:"holder"`
	AcquiredAt time.Time `gorm:"not null" json:"acquired_at"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
}

// TableName overrides the default table name.
func (SyncLock) TableName() string { return "sync_locks" }

// ActiveItem is the current catalog row for a SKU as last reported by the
// vendor feed. The sync upserts the full set each run and soft-deletes
// SKUs that disappeared from the feed.
type ActiveItem struct {
	SKU            string           `gorm:"primaryKey;type:varchar(64);column:sku" json:"sku"`
	Barcode        *string          `gorm:"type:varchar(64);index" json:"barcode,omitempty"`
	BrandID        *string          `gorm:"type:varchar(64)" json:"brand_id,omitempty"`
	CategoryID     *int             `json:"category_id,omitempty"`
	VendorID       *string          `gorm:"type:varchar(64)" json:"vendor_id,omitempty"`
	Description    *string          `gorm:"type:text" json:"description,omitempty"`
	RetailPrice    *decimal.Decimal `gorm:"type:numeric" json:"retail_price,omitempty"`
	CurrentPrice   *decimal.Decimal `gorm:"type:numeric" json:"current_price,omitempty"`
	Price          *decimal.Decimal `gorm:"type:numeric" json:"price,omitempty"`
	QOH            decimal.Decimal  `gorm:"type:numeric;not null;column:qoh" json:"qoh"`
	UOM            *string          `gorm:"type:varchar(16);column:uom" json:"uom,omitempty"`
	UpdateDateTime *time.Time       `gorm:"column:update_datetime" json:"update_datetime,omitempty"`
	IsDeleted      bool             `gorm:"not null;default:false;index" json:"is_deleted"`
	DeletedAt      *time.Time       `json:"deleted_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// TableName overrides the default table name.
func (ActiveItem) TableName() string { return "active_items" }

// UnitPrice returns the first non-nil price in retail → current → list
// order, the order sales valuation uses. Nil when the item has no price
// at all.
func (a *ActiveItem) UnitPrice() *decimal.Decimal {
	switch {
	case a.RetailPrice != nil:
		return a.RetailPrice
	case a.CurrentPrice != nil:
		return a.CurrentPrice
	default:
		return a.Price
	}
}
