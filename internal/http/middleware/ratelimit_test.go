package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	keyFn := KeyByUserOrIP()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.7:1234"
	if got := keyFn(c); got != "ip:203.0.113.7" {
		t.Fatalf("ip key = %q", got)
	}

	c.Set("userID", "abc123")
	if got := keyFn(c); got != "user:abc123" {
		t.Fatalf("user key = %q", got)
	}

	// Non-string or empty userID falls back to IP.
	c.Set("userID", 42)
	if got := keyFn(c); got != "ip:203.0.113.7" {
		t.Fatalf("fallback key = %q", got)
	}
}

func TestNewRateLimiter_BurstCoercion(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst = %d; want 1", rl.burst)
	}
	rl = NewRateLimiter(1, -5, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("negative burst = %d; want 1", rl.burst)
	}
}

func TestRateLimiter_Returns429WithEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// rps 0 with burst 1: first request passes, second is rejected.
	rl := NewRateLimiter(0, 1, KeyByUserOrIP())

	r := gin.New()
	r.Use(RequestID())
	r.Use(rl.Handler())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("first request = %d; want 200", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d; want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q", got)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["code"] != "rate_limited" {
		t.Fatalf("code = %q", body["code"])
	}
	if body["request_id"] == "" {
		t.Fatal("expected request_id in envelope")
	}
}

func TestRateLimiter_VisitorReuseAndEviction(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())

	a := rl.getVisitor("ip:10.0.0.1")
	b := rl.getVisitor("ip:10.0.0.1")
	if a != b {
		t.Fatal("expected the same limiter for the same key")
	}
	if len(rl.visitors) != 1 {
		t.Fatalf("visitors = %d; want 1", len(rl.visitors))
	}

	// Force the entry past its TTL, then trip the cleanup threshold.
	rl.mu.Lock()
	rl.visitors["ip:10.0.0.1"].lastSeen = time.Now().Add(-rl.ttl - time.Second)
	rl.cleanupN = 4999
	rl.mu.Unlock()

	c := rl.getVisitor("ip:10.0.0.1")
	if c == a {
		t.Fatal("expected a fresh limiter after eviction")
	}
	if rl.cleanupN != 0 {
		t.Fatalf("cleanupN = %d; want reset to 0", rl.cleanupN)
	}
}
