package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/lexintake/console/pkg/observability/logger"
)

func newLogger(t *testing.T) (logger.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log, err := logger.NewZapLogger(logger.Config{Level: logger.DebugLevel, Format: logger.JSONFormat, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	return log, &buf
}

func TestLogging_EntryFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, buf := newLogger(t)

	r := gin.New()
	r.Use(Logging(log, "/health"))
	r.GET("/api/v1/attorneys/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/attorneys/42", nil))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON entry, got %q: %v", buf.String(), err)
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
	if entry["route"] != "/api/v1/attorneys/:id" || entry["path"] != "/api/v1/attorneys/42" {
		t.Errorf("unexpected route/path: %v %v", entry["route"], entry["path"])
	}
	if entry["status"] != float64(404) {
		t.Errorf("status = %v", entry["status"])
	}
}

func TestLogging_SkipsPrefixes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, buf := newLogger(t)

	r := gin.New()
	r.Use(Logging(log, "/health", "/metrics"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if strings.TrimSpace(buf.String()) != "" {
		t.Fatalf("expected no log output, got %q", buf.String())
	}
}

func TestLogging_ServerErrorLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log, buf := newLogger(t)

	r := gin.New()
	r.Use(Logging(log))
	r.GET("/fail", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("expected error level entry, got %q", buf.String())
	}
}
