// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the database path, sync-job behavior,
// the vendor catalog endpoint, reporting timezone, and observability.
//
// The Config value is constructed once at process start and passed by
// parameter into the coordinator, fetcher, and query layers; core logic
// never reads the environment on its own.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-inventory-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CatalogConfig defines the vendor SOAP catalog source.
type CatalogConfig struct {
	Endpoint     string        // EWEB_ENDPOINT: the eWebService URL
	ClientNum    int           // EWEB_CLIENT_NUM: AuthenticationInfo client number
	Password     string        // EWEB_PASSWORD: AuthenticationInfo password
	SecurityCode string        // EWEB_SECURITY_CODE: AuthenticationInfo security code
	Timeout      time.Duration // EWEB_TIMEOUT: per-call HTTP timeout
	Retries      int           // EWEB_RETRIES: total attempts for the heavy call
}

// SyncConfig defines the catalog sync job behavior.
type SyncConfig struct {
	Token         string        // SYNC_TOKEN: shared secret gating the trigger routes
	LockName      string        // SYNC_LOCK_NAME: lease name serializing runs
	LockTTL       time.Duration // SYNC_LOCK_TTL: lease duration (crash recovery bound)
	SnapshotBatch int           // SYNC_SNAPSHOT_BATCH: rows per snapshot insert chunk
}

// ChatConfig defines the LLM chat assistant settings.
type ChatConfig struct {
	Token       string // CHAT_TOKEN: shared secret for analytics/chat routes ("" disables the gate)
	OpenAIKey   string // OPENAI_API_KEY
	OpenAIModel string // OPENAI_MODEL (e.g. "gpt-4o-mini")
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath   string // SQLite path
	ReportTZ string // IANA timezone used for local day windows in analytics

	// Domain
	Catalog CatalogConfig
	Sync    SyncConfig
	Chat    ChatConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:   getenv("DB_PATH", "app.db"),
		ReportTZ: getenv("REPORT_TZ", "Australia/Melbourne"),

		// Catalog source
		Catalog: CatalogConfig{
			Endpoint:     getenv("EWEB_ENDPOINT", ""),
			ClientNum:    getint("EWEB_CLIENT_NUM", 0),
			Password:     getenv("EWEB_PASSWORD", ""),
			SecurityCode: getenv("EWEB_SECURITY_CODE", ""),
			Timeout:      getdur("EWEB_TIMEOUT", 10*time.Minute),
			Retries:      getint("EWEB_RETRIES", 2),
		},

		// Sync job
		Sync: SyncConfig{
			Token:         getenv("SYNC_TOKEN", ""),
			LockName:      getenv("SYNC_LOCK_NAME", "sync_active_items_latest"),
			LockTTL:       getdur("SYNC_LOCK_TTL", 30*time.Minute),
			SnapshotBatch: getint("SYNC_SNAPSHOT_BATCH", 500),
		},

		// Chat assistant
		Chat: ChatConfig{
			Token:       getenv("CHAT_TOKEN", ""),
			OpenAIKey:   getenv("OPENAI_API_KEY", ""),
			OpenAIModel: getenv("OPENAI_MODEL", "gpt-4o-mini"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-inventory-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if _, err := time.LoadLocation(cfg.ReportTZ); err != nil {
		return cfg, errors.New("REPORT_TZ must be a valid IANA timezone name")
	}
	if cfg.Catalog.Timeout <= 0 {
		return cfg, errors.New("EWEB_TIMEOUT must be > 0")
	}
	if cfg.Catalog.Retries < 1 {
		return cfg, errors.New("EWEB_RETRIES must be >= 1")
	}
	if strings.TrimSpace(cfg.Sync.LockName) == "" {
		return cfg, errors.New("SYNC_LOCK_NAME must not be empty")
	}
	if cfg.Sync.LockTTL <= 0 {
		return cfg, errors.New("SYNC_LOCK_TTL must be > 0")
	}
	if cfg.Sync.SnapshotBatch < 1 {
		return cfg, errors.New("SYNC_SNAPSHOT_BATCH must be >= 1")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
