// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, token gates, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/retailpulse/go-inventory-backend/internal/config"
	"github.com/retailpulse/go-inventory-backend/internal/eweb"
	"github.com/retailpulse/go-inventory-backend/internal/http/handlers"
	"github.com/retailpulse/go-inventory-backend/internal/http/middleware"
	"github.com/retailpulse/go-inventory-backend/internal/services"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting, CORS
// and security headers, health and metrics endpoints, and then mounts the
// versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with secret scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS and Security headers
//  9. Response compression
func RegisterRoutes(r *gin.Engine, db *gorm.DB, loc *time.Location, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-Sync-Token",
			"X-Chat-Token",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Sync-Token", "X-Chat-Token"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Sync-Token", "X-Chat-Token"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// 9) Compress analytics payloads
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/fetcher
	deltaSvc := services.NewDeltaService(db)
	aggSvc := services.NewAggregateService(db)
	syncSvc := services.NewSyncService(db, eweb.NewClient(cfg.Catalog), deltaSvc, aggSvc,
		cfg.Sync.LockName, cfg.Sync.LockTTL, cfg.Sync.SnapshotBatch)
	analytics := services.NewAnalyticsService(db, loc)

	var completer services.ChatCompleter
	if cfg.Chat.OpenAIKey != "" {
		completer = openai.NewClient(cfg.Chat.OpenAIKey)
	}
	chatSvc := services.NewChatService(completer, cfg.Chat.OpenAIModel, analytics)

	h := handlers.New(syncSvc, deltaSvc, aggSvc, analytics, chatSvc)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Sync triggers (write side)
		sync := api.Group("/sync", middleware.RequireToken(cfg.Sync.Token, "X-Sync-Token"))
		{
			sync.POST("/run", h.RunSync)
			sync.POST("/deltas", h.ComputeDeltas)
			sync.POST("/aggregate-daily", h.AggregateDaily)
		}

		// Analytics (read side)
		reports := api.Group("/analytics", middleware.RequireToken(cfg.Chat.Token, "X-Chat-Token"))
		{
			reports.GET("/sales-range", h.SalesRange)
			reports.GET("/sales-today", h.SalesToday)
			reports.GET("/sales-yesterday", h.SalesYesterday)
			reports.GET("/inventory-changes", h.InventoryChanges)
			reports.GET("/delta-summary", h.DeltaSummary)
			reports.GET("/net-change", h.NetChange)
			reports.GET("/data-freshness", h.DataFreshness)
			reports.GET("/sync-status", h.SyncStatus)
			reports.GET("/out-of-stock", h.OutOfStock)
			reports.GET("/low-stock", h.LowStock)
			reports.GET("/item/:sku", h.GetItem)
			reports.GET("/search-items", h.SearchItems)
		}

		// Assistant
		api.POST("/chat", middleware.RequireToken(cfg.Chat.Token, "X-Chat-Token"), h.Chat)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
