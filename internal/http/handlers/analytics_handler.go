// Analytics HTTP handlers.
//
// This file exposes the read-only reporting endpoints:
//   - GET /analytics/sales-range, /sales-today, /sales-yesterday
//   - GET /analytics/inventory-changes
//   - GET /analytics/delta-summary
//   - GET /analytics/net-change
//   - GET /analytics/data-freshness
//   - GET /analytics/sync-status
//   - GET /analytics/out-of-stock, /low-stock
//   - GET /analytics/item/{sku}, /search-items
//
// Handlers parse and clamp query parameters, delegate to the analytics
// service, and serialize its reports unchanged.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/retailpulse/go-inventory-backend/internal/services"
	"github.com/retailpulse/go-inventory-backend/internal/utils"
)

// SalesRange godoc
// @ID          salesRange
// @Summary     Inferred sales over a local day range
// @Description Per-SKU inferred sales (inventory decreases) for the inclusive local day range, valued with the retail price fallback.
// @Tags        Analytics
// @Produce     json
//
// @Param       from   query  string  true   "Start day (YYYY-MM-DD, local)"
// @Param       to     query  string  true   "End day (YYYY-MM-DD, local)"
// @Param       limit  query  int     false  "Max SKU lines"  minimum(1) maximum(200) default(50)
//
// @Success     200  {object}  services.SalesReport
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /analytics/sales-range [get]
func (h *Handlers) SalesRange(c *gin.Context) {
	from := strings.TrimSpace(c.Query("from"))
	to := strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "from and to are required (YYYY-MM-DD)")
		return
	}
	rep, err := h.analytics.SalesRange(c.Request.Context(), from, to, utils.AtoiDefault(c.Query("limit"), 0))
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

// SalesToday godoc
// @ID          salesToday
// @Summary     Inferred sales for the current local day
// @Tags        Analytics
// @Produce     json
// @Param       limit  query  int  false  "Max SKU lines"  minimum(1) maximum(200) default(50)
// @Success     200  {object}  services.SalesReport
// @Router      /analytics/sales-today [get]
func (h *Handlers) SalesToday(c *gin.Context) {
	rep, err := h.analytics.SalesToday(c.Request.Context(), utils.AtoiDefault(c.Query("limit"), 0))
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

// SalesYesterday godoc
// @ID          salesYesterday
// @Summary     Inferred sales for the previous local day
// @Tags        Analytics
// @Produce     json
// @Param       limit  query  int  false  "Max SKU lines"  minimum(1) maximum(200) default(50)
// @Success     200  {object}  services.SalesReport
// @Router      /analytics/sales-yesterday [get]
func (h *Handlers) SalesYesterday(c *gin.Context) {
	rep, err := h.analytics.SalesYesterday(c.Request.Context(), utils.AtoiDefault(c.Query("limit"), 0))
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

// InventoryChanges godoc
// @ID          inventoryChanges
// @Summary     Net inventory movement per SKU
// @Description Net delta per SKU across the successful runs of the window, with run span metadata. Modes: changes (all), decreases, sales (decreases with disclaimer).
// @Tags        Analytics
// @Produce     json
//
// @Param       mode           query  string  false  "changes|decreases|sales"   default(changes)
// @Param       scope          query  string  false  "today|hours"               default(today)
// @Param       hours          query  int     false  "Window size for scope=hours"  minimum(1) maximum(168) default(4)
// @Param       limit          query  int     false  "Max rows"                  minimum(1) maximum(200)
// @Param       min_abs_delta  query  string  false  "Noise threshold"           default(0.0001)
//
// @Success     200  {object}  services.ChangesReport
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /analytics/inventory-changes [get]
func (h *Handlers) InventoryChanges(c *gin.Context) {
	p := services.ChangesParams{
		Mode:        strings.TrimSpace(c.DefaultQuery("mode", "changes")),
		Scope:       strings.TrimSpace(c.DefaultQuery("scope", "today")),
		Hours:       utils.AtoiDefault(c.Query("hours"), 4),
		Limit:       utils.AtoiDefault(c.Query("limit"), 0),
		MinAbsDelta: strings.TrimSpace(c.Query("min_abs_delta")),
	}
	rep, err := h.analytics.InventoryChanges(c.Request.Context(), p)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

// DeltaSummary godoc
// @ID          deltaSummary
// @Summary     Movement summary for a window
// @Description Row- and SKU-level totals of increases and decreases across the successful runs of the window.
// @Tags        Analytics
// @Produce     json
//
// @Param       scope          query  string  false  "today|hours"  default(today)
// @Param       hours          query  int     false  "Window size for scope=hours"  minimum(1) maximum(168) default(4)
// @Param       min_abs_delta  query  string  false  "Noise threshold"  default(0.0001)
//
// @Success     200  {object}  services.DeltaSummaryReport
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /analytics/delta-summary [get]
func (h *Handlers) DeltaSummary(c *gin.Context) {
	rep, err := h.analytics.DeltaSummary(
		c.Request.Context(),
		strings.TrimSpace(c.DefaultQuery("scope", "today")),
		utils.AtoiDefault(c.Query("hours"), 4),
		strings.TrimSpace(c.Query("min_abs_delta")),
	)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

// NetChange godoc
// @ID          netChange
// @Summary     Daily movement rollup rows
// @Description Materialized per-(day, SKU) movement buckets for the inclusive UTC day range.
// @Tags        Analytics
// @Produce     json
//
// @Param       from  query  string  true  "Start day (YYYY-MM-DD, UTC)"
// @Param       to    query  string  true  "End day (YYYY-MM-DD, UTC)"
//
// @Success     200  {object}  services.NetChangeReport
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /analytics/net-change [get]
func (h *Handlers) NetChange(c *gin.Context) {
	from := strings.TrimSpace(c.Query("from"))
	to := strings.TrimSpace(c.Query("to"))
	if from == "" || to == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "from and to are required (YYYY-MM-DD)")
		return
	}
	rep, err := h.analytics.NetChange(c.Request.Context(), from, to)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

// DataFreshness godoc
// @ID          dataFreshness
// @Summary     Derived data watermarks
// @Description Latest delta computation, catalog update, and rolled-up day, in UTC and report-local time.
// @Tags        Analytics
// @Produce     json
// @Success     200  {object}  services.FreshnessReport
// @Router      /analytics/data-freshness [get]
func (h *Handlers) DataFreshness(c *gin.Context) {
	rep, err := h.analytics.Freshness(c.Request.Context())
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, rep)
}

// SyncStatus godoc
// @ID          syncStatus
// @Summary     Recent sync runs
// @Tags        Analytics
// @Produce     json
// @Param       limit  query  int  false  "Max rows"  minimum(1) maximum(200) default(20)
// @Success     200  {object}  map[string]any
// @Router      /analytics/sync-status [get]
func (h *Handlers) SyncStatus(c *gin.Context) {
	runs, err := h.analytics.SyncStatus(c.Request.Context(), utils.AtoiDefault(c.Query("limit"), 0))
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": len(runs), "data": runs})
}

// OutOfStock godoc
// @ID          outOfStock
// @Summary     Live items with no stock on hand
// @Tags        Analytics
// @Produce     json
// @Param       limit  query  int  false  "Max rows"  minimum(1) maximum(200) default(50)
// @Success     200  {object}  map[string]any
// @Router      /analytics/out-of-stock [get]
func (h *Handlers) OutOfStock(c *gin.Context) {
	items, err := h.analytics.OutOfStock(c.Request.Context(), utils.AtoiDefault(c.Query("limit"), 0))
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": len(items), "data": items})
}

// LowStock godoc
// @ID          lowStock
// @Summary     Live items at or below a stock threshold
// @Tags        Analytics
// @Produce     json
// @Param       threshold  query  string  false  "QOH threshold"  default(5)
// @Param       limit      query  int     false  "Max rows"       minimum(1) maximum(200) default(50)
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /analytics/low-stock [get]
func (h *Handlers) LowStock(c *gin.Context) {
	items, err := h.analytics.LowStock(
		c.Request.Context(),
		strings.TrimSpace(c.Query("threshold")),
		utils.AtoiDefault(c.Query("limit"), 0),
	)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": len(items), "data": items})
}

// GetItem godoc
// @ID          getItem
// @Summary     Catalog item by SKU
// @Tags        Analytics
// @Produce     json
// @Param       sku  path  string  true  "Item SKU"
// @Success     200  {object}  domain.ActiveItem
// @Failure     404  {object}  handlers.ErrorResponse  "Item not found"
// @Router      /analytics/item/{sku} [get]
func (h *Handlers) GetItem(c *gin.Context) {
	sku := strings.TrimSpace(c.Param("sku"))
	if sku == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sku required")
		return
	}
	it, err := h.analytics.Item(c.Request.Context(), sku)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, it)
}

// SearchItems godoc
// @ID          searchItems
// @Summary     Search live catalog items
// @Description Matches SKU, barcode, or description.
// @Tags        Analytics
// @Produce     json
// @Param       q      query  string  true   "Search text"
// @Param       limit  query  int     false  "Max rows"  minimum(1) maximum(200) default(50)
// @Success     200  {object}  map[string]any
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /analytics/search-items [get]
func (h *Handlers) SearchItems(c *gin.Context) {
	items, err := h.analytics.SearchItems(
		c.Request.Context(),
		strings.TrimSpace(c.Query("q")),
		utils.AtoiDefault(c.Query("limit"), 0),
	)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": len(items), "data": items})
}
