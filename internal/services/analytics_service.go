// Package services – AnalyticsService
//
// This file implements the read-only reporting layer over deltas, daily
// movement, sync runs, and the active catalog. Requests speak local
// calendar days and "today"/"hours" scopes; all store reads are UTC.
// The layer never writes.
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
	"github.com/retailpulse/go-inventory-backend/internal/repo"
)

// SalesDisclaimer accompanies every payload that uses the word "sales".
const SalesDisclaimer = "Sales are inferred from inventory decreases (delta < 0). This may include adjustments, transfers, or stock corrections."

// AnalyticsService answers reporting queries. Loc is the store's reporting
// timezone; Now is the clock, overridable in tests.
type AnalyticsService struct {
	// DB is the GORM handle used for reads.
	DB *gorm.DB
	// Loc is the reporting timezone for local day windows.
	Loc *time.Location
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService for the given timezone.
func NewAnalyticsService(db *gorm.DB, loc *time.Location) *AnalyticsService {
	return &AnalyticsService{DB: db, Loc: loc, Now: time.Now}
}

func (s *AnalyticsService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// SalesLine is one SKU's inferred sales over a window.
type SalesLine struct {
	SKU         string           `json:"sku"`
	Units       decimal.Decimal  `json:"units"`
	RetailPrice *decimal.Decimal `json:"retail_price"`
	LineValue   *decimal.Decimal `json:"line_value"`
	Description *string          `json:"description,omitempty"`
}

// SalesReport is the inferred-sales breakdown for an inclusive local day
// range.
type SalesReport struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	Timezone    string          `json:"timezone"`
	WindowStart time.Time       `json:"window_start_utc"`
	WindowEnd   time.Time       `json:"window_end_utc"`
	TotalUnits  decimal.Decimal `json:"total_units"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Breakdown   []SalesLine     `json:"sku_breakdown"`
	Note        string          `json:"note"`
}

// SalesRange reports inferred sales (negative deltas) per SKU for the
// inclusive local day range [fromDay, toDay], valued with the
// retail→current→list price fallback. Lines are ordered by units sold
// descending, capped at limit.
func (s *AnalyticsService) SalesRange(ctx context.Context, fromDay, toDay string, limit int) (*SalesReport, error) {
	limit = clampLimit(limit, 50)
	start, end, err := localDayRangeUTC(s.Loc, fromDay, toDay)
	if err != nil {
		return nil, err
	}

	deltas, err := repo.ListDeltasForWindow(ctx, s.DB, start, end)
	if err != nil {
		return nil, err
	}

	units := make(map[string]decimal.Decimal)
	order := make([]string, 0)
	for _, d := range deltas {
		if !d.Delta.IsNegative() {
			continue
		}
		if _, ok := units[d.SKU]; !ok {
			order = append(order, d.SKU)
		}
		units[d.SKU] = units[d.SKU].Add(d.Delta.Abs())
	}

	items, err := repo.ItemsBySKU(ctx, s.DB, order)
	if err != nil {
		return nil, err
	}

	lines := make([]SalesLine, 0, len(order))
	totalUnits := decimal.Zero
	totalValue := decimal.Zero
	for _, sku := range order {
		u := units[sku]
		line := SalesLine{SKU: sku, Units: u}
		if it, ok := items[sku]; ok {
			line.Description = it.Description
			if p := it.UnitPrice(); p != nil {
				v := u.Mul(*p)
				line.RetailPrice = p
				line.LineValue = &v
				totalValue = totalValue.Add(v)
			}
		}
		totalUnits = totalUnits.Add(u)
		lines = append(lines, line)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Units.GreaterThan(lines[j].Units) })
	if len(lines) > limit {
		lines = lines[:limit]
	}

	return &SalesReport{
		From:        fromDay,
		To:          toDay,
		Timezone:    s.Loc.String(),
		WindowStart: start,
		WindowEnd:   end,
		TotalUnits:  totalUnits,
		TotalValue:  totalValue,
		Breakdown:   lines,
		Note:        SalesDisclaimer,
	}, nil
}

// SalesToday reports inferred sales for the current local day.
func (s *AnalyticsService) SalesToday(ctx context.Context, limit int) (*SalesReport, error) {
	day := localDay(s.now(), s.Loc)
	return s.SalesRange(ctx, day, day, limit)
}

// SalesYesterday reports inferred sales for the previous local day.
func (s *AnalyticsService) SalesYesterday(ctx context.Context, limit int) (*SalesReport, error) {
	day := localDay(s.now().AddDate(0, 0, -1), s.Loc)
	return s.SalesRange(ctx, day, day, limit)
}

// ChangesParams selects an inventory-changes view.
type ChangesParams struct {
	Mode        string // changes|decreases|sales
	Scope       string // today|hours
	Hours       int
	Limit       int
	MinAbsDelta string
}

// ChangeRow is one SKU's net movement across the runs of a window.
type ChangeRow struct {
	SKU               string          `json:"sku"`
	NetDelta          decimal.Decimal `json:"net_delta"`
	RunsCount         int             `json:"runs_count"`
	FirstToRunID      uint64          `json:"first_to_run_id"`
	LastToRunID       uint64          `json:"last_to_run_id"`
	FirstRunStartedAt time.Time       `json:"first_run_started_at"`
	LastRunStartedAt  time.Time       `json:"last_run_started_at"`
}

// ChangesReport is the per-SKU net movement view.
type ChangesReport struct {
	Mode        string          `json:"mode"`
	Scope       string          `json:"scope"`
	Window      string          `json:"window"`
	Limit       int             `json:"limit"`
	MinAbsDelta decimal.Decimal `json:"min_abs_delta"`
	Disclaimer  *string         `json:"disclaimer"`
	Count       int             `json:"count"`
	Data        []ChangeRow     `json:"data"`
}

// InventoryChanges aggregates deltas per SKU across the successful runs of
// the window. Mode "changes" keeps every SKU whose |net| clears the noise
// threshold; "decreases" and "sales" keep only net decreases, the latter
// attaching the inferred-sales disclaimer.
func (s *AnalyticsService) InventoryChanges(ctx context.Context, p ChangesParams) (*ChangesReport, error) {
	switch p.Mode {
	case "changes", "decreases", "sales":
	default:
		return nil, fmt.Errorf("%w: mode must be changes, decreases, or sales", ErrInvalidArgument)
	}
	limit := clampLimit(p.Limit, maxReportLimit)
	minAbs := parseMinAbsDelta(p.MinAbsDelta)

	start, label, err := scopeStart(p.Scope, p.Hours, s.Loc, s.now())
	if err != nil {
		return nil, err
	}

	rows, err := repo.ListRunDeltasSince(ctx, s.DB, domain.JobSyncActiveItems, start)
	if err != nil {
		return nil, err
	}

	grouped := groupRunDeltas(rows)
	out := make([]ChangeRow, 0, len(grouped))
	for _, g := range grouped {
		if p.Mode != "changes" && !g.NetDelta.IsNegative() {
			continue
		}
		if g.NetDelta.Abs().LessThan(minAbs) {
			continue
		}
		out = append(out, g)
	}

	if p.Mode == "changes" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].NetDelta.Abs().GreaterThan(out[j].NetDelta.Abs()) })
	} else {
		// Largest decreases first.
		sort.SliceStable(out, func(i, j int) bool { return out[i].NetDelta.LessThan(out[j].NetDelta) })
	}
	if len(out) > limit {
		out = out[:limit]
	}

	var disclaimer *string
	if p.Mode == "sales" {
		d := SalesDisclaimer
		disclaimer = &d
	}
	return &ChangesReport{
		Mode:        p.Mode,
		Scope:       p.Scope,
		Window:      label,
		Limit:       limit,
		MinAbsDelta: minAbs,
		Disclaimer:  disclaimer,
		Count:       len(out),
		Data:        out,
	}, nil
}

// groupRunDeltas folds run-delta rows into per-SKU net figures with run
// span metadata. Input is ordered by run id, so first/last fall out of the
// scan.
func groupRunDeltas(rows []repo.RunDelta) []ChangeRow {
	type acc struct {
		row  ChangeRow
		runs map[uint64]struct{}
	}
	bySKU := make(map[string]*acc)
	order := make([]string, 0)

	for _, r := range rows {
		a, ok := bySKU[r.SKU]
		if !ok {
			a = &acc{
				row: ChangeRow{
					SKU:               r.SKU,
					NetDelta:          decimal.Zero,
					FirstToRunID:      r.ToSyncRunID,
					FirstRunStartedAt: r.StartedAt,
				},
				runs: make(map[uint64]struct{}),
			}
			bySKU[r.SKU] = a
			order = append(order, r.SKU)
		}
		a.row.NetDelta = a.row.NetDelta.Add(r.Delta)
		a.row.LastToRunID = r.ToSyncRunID
		a.row.LastRunStartedAt = r.StartedAt
		a.runs[r.ToSyncRunID] = struct{}{}
	}

	out := make([]ChangeRow, 0, len(order))
	for _, sku := range order {
		a := bySKU[sku]
		a.row.RunsCount = len(a.runs)
		out = append(out, a.row)
	}
	return out
}

// DeltaSummaryReport totals a window's movement at row and SKU level.
type DeltaSummaryReport struct {
	Scope       string          `json:"scope"`
	Window      string          `json:"window"`
	MinAbsDelta decimal.Decimal `json:"min_abs_delta"`

	TotalRows           int             `json:"total_rows"`
	NegRows             int             `json:"neg_rows"`
	PosRows             int             `json:"pos_rows"`
	ZeroRows            int             `json:"zero_rows"`
	TotalUnitsDecreased decimal.Decimal `json:"total_units_decreased"`
	TotalUnitsIncreased decimal.Decimal `json:"total_units_increased"`

	SKUCount          int             `json:"sku_count"`
	SKUsDecreased     int             `json:"skus_decreased"`
	SKUsIncreased     int             `json:"skus_increased"`
	SKUsNoChange      int             `json:"skus_no_change"`
	NetUnitsDecreased decimal.Decimal `json:"net_units_decreased"`
	NetUnitsIncreased decimal.Decimal `json:"net_units_increased"`

	RunsCount         int        `json:"runs_count"`
	FirstToRunID      uint64     `json:"first_to_run_id"`
	LastToRunID       uint64     `json:"last_to_run_id"`
	FirstRunStartedAt *time.Time `json:"first_run_started_at"`
	LastRunStartedAt  *time.Time `json:"last_run_started_at"`
}

// DeltaSummary summarizes increases and decreases across the successful
// runs of the window. Rows below the noise threshold are excluded from the
// row-level tallies unless exactly zero, keeping row accounting consistent.
func (s *AnalyticsService) DeltaSummary(ctx context.Context, scope string, hours int, minAbsDelta string) (*DeltaSummaryReport, error) {
	minAbs := parseMinAbsDelta(minAbsDelta)
	start, label, err := scopeStart(scope, hours, s.Loc, s.now())
	if err != nil {
		return nil, err
	}

	rows, err := repo.ListRunDeltasSince(ctx, s.DB, domain.JobSyncActiveItems, start)
	if err != nil {
		return nil, err
	}

	rep := &DeltaSummaryReport{
		Scope:               scope,
		Window:              label,
		MinAbsDelta:         minAbs,
		TotalUnitsDecreased: decimal.Zero,
		TotalUnitsIncreased: decimal.Zero,
		NetUnitsDecreased:   decimal.Zero,
		NetUnitsIncreased:   decimal.Zero,
	}

	runs := make(map[uint64]struct{})
	for _, r := range rows {
		if !r.Delta.IsZero() && r.Delta.Abs().LessThan(minAbs) {
			continue
		}
		rep.TotalRows++
		switch {
		case r.Delta.IsNegative():
			rep.NegRows++
			rep.TotalUnitsDecreased = rep.TotalUnitsDecreased.Add(r.Delta.Abs())
		case r.Delta.IsPositive():
			rep.PosRows++
			rep.TotalUnitsIncreased = rep.TotalUnitsIncreased.Add(r.Delta)
		default:
			rep.ZeroRows++
		}

		runs[r.ToSyncRunID] = struct{}{}
		if rep.FirstToRunID == 0 || r.ToSyncRunID < rep.FirstToRunID {
			rep.FirstToRunID = r.ToSyncRunID
			t := r.StartedAt
			rep.FirstRunStartedAt = &t
		}
		if r.ToSyncRunID > rep.LastToRunID {
			rep.LastToRunID = r.ToSyncRunID
			t := r.StartedAt
			rep.LastRunStartedAt = &t
		}
	}
	rep.RunsCount = len(runs)

	for _, g := range groupRunDeltas(rows) {
		rep.SKUCount++
		switch {
		case g.NetDelta.IsNegative():
			rep.SKUsDecreased++
			rep.NetUnitsDecreased = rep.NetUnitsDecreased.Add(g.NetDelta.Abs())
		case g.NetDelta.IsPositive():
			rep.SKUsIncreased++
			rep.NetUnitsIncreased = rep.NetUnitsIncreased.Add(g.NetDelta)
		default:
			rep.SKUsNoChange++
		}
	}

	return rep, nil
}

// NetChangeReport lists daily movement rollup rows for a day range.
type NetChangeReport struct {
	From  string                 `json:"from"`
	To    string                 `json:"to"`
	Count int                    `json:"count"`
	Data  []domain.DailyMovement `json:"data"`
}

// NetChange returns the materialized daily rollup rows for the inclusive
// UTC day range [fromDay, toDay].
func (s *AnalyticsService) NetChange(ctx context.Context, fromDay, toDay string) (*NetChangeReport, error) {
	if _, _, err := dayWindowUTC(fromDay); err != nil {
		return nil, err
	}
	if _, _, err := dayWindowUTC(toDay); err != nil {
		return nil, err
	}
	rows, err := repo.ListMovementRange(ctx, s.DB, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	return &NetChangeReport{From: fromDay, To: toDay, Count: len(rows), Data: rows}, nil
}

// FreshnessReport states how current each derived dataset is, in UTC and
// report-local time.
type FreshnessReport struct {
	Timezone                 string     `json:"timezone"`
	LastDeltaComputedAtUTC   *time.Time `json:"last_delta_computed_at_utc"`
	LastDeltaComputedAtLocal *time.Time `json:"last_delta_computed_at_local"`
	LastItemUpdatedAtUTC     *time.Time `json:"last_item_updated_at_utc"`
	LastItemUpdatedAtLocal   *time.Time `json:"last_item_updated_at_local"`
	LastAggregatedDay        string     `json:"last_aggregated_day,omitempty"`
}

// Freshness reports the latest delta, catalog update, and rolled-up day.
func (s *AnalyticsService) Freshness(ctx context.Context) (*FreshnessReport, error) {
	st, err := repo.Freshness(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	rep := &FreshnessReport{
		Timezone:          s.Loc.String(),
		LastAggregatedDay: st.LastAggregatedDay,
	}
	if st.LastDeltaComputedAt != nil {
		u := st.LastDeltaComputedAt.UTC()
		l := u.In(s.Loc)
		rep.LastDeltaComputedAtUTC = &u
		rep.LastDeltaComputedAtLocal = &l
	}
	if st.LastItemUpdatedAt != nil {
		u := st.LastItemUpdatedAt.UTC()
		l := u.In(s.Loc)
		rep.LastItemUpdatedAtUTC = &u
		rep.LastItemUpdatedAtLocal = &l
	}
	return rep, nil
}

// SyncStatus returns the most recent sync runs, newest first.
func (s *AnalyticsService) SyncStatus(ctx context.Context, limit int) ([]domain.SyncRun, error) {
	return repo.ListRecentRuns(ctx, s.DB, clampLimit(limit, 20))
}

// OutOfStock lists live catalog rows with no stock on hand.
func (s *AnalyticsService) OutOfStock(ctx context.Context, limit int) ([]domain.ActiveItem, error) {
	return repo.ListOutOfStock(ctx, s.DB, clampLimit(limit, 50))
}

// LowStock lists live catalog rows at or below the threshold (default 5).
func (s *AnalyticsService) LowStock(ctx context.Context, threshold string, limit int) ([]domain.ActiveItem, error) {
	th := decimal.NewFromInt(5)
	if threshold != "" {
		d, err := decimal.NewFromString(threshold)
		if err != nil || !d.IsPositive() {
			return nil, fmt.Errorf("%w: threshold must be a positive number", ErrInvalidArgument)
		}
		th = d
	}
	return repo.ListLowStock(ctx, s.DB, th, clampLimit(limit, 50))
}

// Item fetches one catalog row by SKU.
func (s *AnalyticsService) Item(ctx context.Context, sku string) (*domain.ActiveItem, error) {
	it, err := repo.GetItem(ctx, s.DB, sku)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return it, nil
}

// SearchItems finds live catalog rows matching q by SKU, barcode, or
// description.
func (s *AnalyticsService) SearchItems(ctx context.Context, q string, limit int) ([]domain.ActiveItem, error) {
	if q == "" {
		return nil, fmt.Errorf("%w: q must not be empty", ErrInvalidArgument)
	}
	return repo.SearchItems(ctx, s.DB, q, clampLimit(limit, 50))
}
