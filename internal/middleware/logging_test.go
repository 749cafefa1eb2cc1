package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/massargual/portfolio-api/internal/model"
)

type recordedMetrics struct {
	statuses  []int
	latencies []time.Duration
}

func (m *recordedMetrics) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

func (m *recordedMetrics) RecordRequestLatency(duration time.Duration) {
	m.latencies = append(m.latencies, duration)
}

var _ RequestMetrics = (*recordedMetrics)(nil)

func TestLoggingMiddleware_EmitsStructuredLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	metrics := &recordedMetrics{}

	handler := NewLoggingMiddleware(logger, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/posts/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["path"] != "/api/posts/missing" {
		t.Errorf("path = %v", entry["path"])
	}
	if entry["status"] != float64(http.StatusNotFound) {
		t.Errorf("status = %v", entry["status"])
	}
	// 4xxはWarnレベルで出力される
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", entry["level"])
	}

	if len(metrics.statuses) != 1 || metrics.statuses[0] != http.StatusNotFound {
		t.Errorf("recorded statuses = %v", metrics.statuses)
	}
	if len(metrics.latencies) != 1 {
		t.Errorf("recorded latencies = %v", metrics.latencies)
	}
}

func TestLoggingMiddleware_DoesNotDependOnInnerAuthContext(t *testing.T) {
	// RequireUserが内側で派生させたコンテキストはここまで戻ってこない。
	// ログ行は認証状態に依存せず常に同じ形で出力される。
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := NewLoggingMiddleware(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(ContextWithUser(r.Context(), &model.User{ID: "user-1"}))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/api/posts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if _, ok := entry["user_id"]; ok {
		t.Errorf("user_id must not appear in the request log, got %v", entry["user_id"])
	}
	for _, key := range []string{"method", "path", "status", "duration_ms"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("log entry is missing %q", key)
		}
	}
}

func TestLoggingMiddleware_DefaultsTo200(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := NewLoggingMiddleware(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
}
