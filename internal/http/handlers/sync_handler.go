// Sync trigger HTTP handlers.
//
// This file exposes the write entry points of the API:
//   - POST /sync/run             (capture a catalog snapshot and derive)
//   - POST /sync/deltas          (backfill deltas for an existing run)
//   - POST /sync/aggregate-daily (recompute the recent rollup days)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/retailpulse/go-inventory-backend/internal/domain"
	"github.com/retailpulse/go-inventory-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// SyncRunner executes one end-to-end catalog sync run.
//
// Implementations must honor the provided context for cancellation and
// timeouts and serialize concurrent invocations themselves.
type SyncRunner interface {
	// Run captures a catalog snapshot, derives deltas, and refreshes the
	// recent rollup. The returned run reflects the recorded outcome even
	// when err is non-nil.
	Run(ctx context.Context, jobName string) (*domain.SyncRun, error)
}

// DeltaComputer recomputes the delta set for an existing run.
type DeltaComputer interface {
	// ComputeForRun diffs the run against its baseline and upserts the
	// resulting rows, returning how many were written.
	ComputeForRun(ctx context.Context, toRunID uint64, allowFailed bool) (int, error)
}

// DailyAggregator refreshes the materialized daily movement rollup.
type DailyAggregator interface {
	// RecomputeRecent re-derives yesterday's and today's UTC buckets.
	RecomputeRecent(ctx context.Context) error
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for sync triggers, analytics, and the
// chat assistant. Write-side collaborators are abstract interfaces to keep
// transport concerns separate from business logic; the read-only analytics
// layer is used directly.
type Handlers struct {
	syncSvc   SyncRunner
	deltaSvc  DeltaComputer
	aggSvc    DailyAggregator
	analytics *services.AnalyticsService
	chatSvc   Assistant
}

// New constructs a Handlers instance bound to the given services.
func New(syncSvc SyncRunner, deltaSvc DeltaComputer, aggSvc DailyAggregator, analytics *services.AnalyticsService, chatSvc Assistant) *Handlers {
	return &Handlers{
		syncSvc:   syncSvc,
		deltaSvc:  deltaSvc,
		aggSvc:    aggSvc,
		analytics: analytics,
		chatSvc:   chatSvc,
	}
}

//
// DTOs
//

// SyncRunResponse reports the outcome of a sync run trigger.
type SyncRunResponse struct {
	Status  string `json:"status" example:"success"`
	RunID   uint64 `json:"run_id" example:"42"`
	Message string `json:"message,omitempty" example:"OK"`
}

// ComputeDeltasRequest is the JSON payload for the delta backfill endpoint.
type ComputeDeltasRequest struct {
	// ToSyncRunID is the run whose deltas are recomputed.
	ToSyncRunID uint64 `json:"to_sync_run_id" binding:"required" example:"42"`
	// AllowFailed accepts a failed run that still captured snapshots.
	AllowFailed bool `json:"allow_failed" example:"false"`
}

// ComputeDeltasResponse reports how many delta rows were written.
type ComputeDeltasResponse struct {
	ToSyncRunID uint64 `json:"to_sync_run_id"`
	RowsWritten int    `json:"rows_written"`
}

//
// Handlers
//

// RunSync godoc
// @ID          runSync
// @Summary     Trigger a catalog sync run
// @Description Fetches the vendor catalog, snapshots it, derives deltas against the previous successful run, and refreshes the recent rollup. Serialized by a store lease; a concurrent trigger gets 409 lock_conflict.
// @Tags        Sync
// @Produce     json
//
// @Param       job_name  query  string  false  "Job name"  default(sync-active-items-latest)
//
// @Success     200  {object}  handlers.SyncRunResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     409  {object}  handlers.ErrorResponse  "Lease held by another run"
// @Failure     502  {object}  handlers.ErrorResponse  "Vendor fetch failed"
// @Router      /sync/run [post]
func (h *Handlers) RunSync(c *gin.Context) {
	jobName := strings.TrimSpace(c.Query("job_name"))
	if jobName == "" {
		jobName = domain.JobSyncActiveItems
	}

	run, err := h.syncSvc.Run(c.Request.Context(), jobName)
	if err != nil {
		if run != nil {
			// The run opened and its failure is on record; report both.
			status, _ := statusFor(err)
			msg := ""
			if run.Message != nil {
				msg = *run.Message
			}
			ok(c, status, SyncRunResponse{Status: run.Status, RunID: run.ID, Message: msg})
			return
		}
		failFromError(c, err)
		return
	}

	msg := ""
	if run.Message != nil {
		msg = *run.Message
	}
	ok(c, http.StatusOK, SyncRunResponse{Status: run.Status, RunID: run.ID, Message: msg})
}

// ComputeDeltas godoc
// @ID          computeDeltas
// @Summary     Backfill deltas for a run
// @Description Recomputes the delta set of an existing run against its baseline. Idempotent; re-running converges to the same rows.
// @Tags        Sync
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ComputeDeltasRequest  true  "Target run"
//
// @Success     200  {object}  handlers.ComputeDeltasResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     422  {object}  handlers.ErrorResponse  "Run missing, unsuccessful, or without snapshots"
// @Router      /sync/deltas [post]
func (h *Handlers) ComputeDeltas(c *gin.Context) {
	var req ComputeDeltasRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ToSyncRunID == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to_sync_run_id required")
		return
	}

	n, err := h.deltaSvc.ComputeForRun(c.Request.Context(), req.ToSyncRunID, req.AllowFailed)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, ComputeDeltasResponse{ToSyncRunID: req.ToSyncRunID, RowsWritten: n})
}

// AggregateDaily godoc
// @ID          aggregateDaily
// @Summary     Recompute the recent daily rollup
// @Description Re-derives yesterday's and today's UTC movement buckets from the delta log.
// @Tags        Sync
// @Produce     json
//
// @Success     200  {object}  map[string]string
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /sync/aggregate-daily [post]
func (h *Handlers) AggregateDaily(c *gin.Context) {
	if err := h.aggSvc.RecomputeRecent(c.Request.Context()); err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}
