package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// withCapturedLogger swaps the global zerolog logger for one writing into a
// buffer, restoring the original when the test ends.
func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = orig })
	return &buf
}

func TestRedactingLogger_ScrubsQueryAndHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{
		MaskHeaders: []string{"X-Sync-Token", "X-Chat-Token"},
	}))
	r.GET("/items/:sku", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet,
		"/items/WIDGET-1?email=ops@example.com&phone=%2B1%20212-555-1212&ref=123e4567-e89b-12d3-a456-426614174000", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	req.Header.Set("X-Sync-Token", "super-secret")
	req.Header.Set("X-Contact", "call me at 212 555 1212")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	out := buf.String()

	if !strings.Contains(out, `"level":"info"`) {
		t.Fatalf("expected info level, got: %s", out)
	}
	if !strings.Contains(out, `"path":"/items/:sku"`) {
		t.Fatalf("expected route template path, got: %s", out)
	}

	reqID := w.Header().Get("X-Request-ID")
	if reqID == "" || !strings.Contains(out, reqID) {
		t.Fatalf("expected request_id %q in log, got: %s", reqID, out)
	}

	for _, want := range []string{"[REDACTED:email]", "[REDACTED:phone]", "[REDACTED:id]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in log, got: %s", want, out)
		}
	}
	for _, leak := range []string{"ops@example.com", "212-555-1212", "426614174000", "super-secret", "secret-token"} {
		if strings.Contains(out, leak) {
			t.Fatalf("sensitive value %q leaked to log: %s", leak, out)
		}
	}
	if !strings.Contains(out, `"X-Sync-Token":"[REDACTED]"`) {
		t.Fatalf("expected masked X-Sync-Token header, got: %s", out)
	}
	if !strings.Contains(out, `"Authorization":"[REDACTED]"`) {
		t.Fatalf("expected masked Authorization header, got: %s", out)
	}
}

func TestRedactingLogger_AttachesScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID())
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/runs", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("listing runs")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/runs", nil))

	out := buf.String()
	if !strings.Contains(out, `"listing runs"`) {
		t.Fatalf("handler log missing: %s", out)
	}
	reqID := w.Header().Get("X-Request-ID")
	line := out[:strings.Index(out, "\n")]
	if reqID == "" || !strings.Contains(line, reqID) {
		t.Fatalf("scoped logger missing request_id %q: %s", reqID, line)
	}
	if !strings.Contains(line, `"path":"/runs"`) {
		t.Fatalf("scoped logger missing path: %s", line)
	}
}

func TestRedactingLogger_SeverityByStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RedactingLogger(RedactOptions{}))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if !strings.Contains(buf.String(), `"level":"warn"`) {
		t.Fatalf("expected warn level for 404, got: %s", buf.String())
	}

	buf.Reset()
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error level for 500, got: %s", buf.String())
	}
}
