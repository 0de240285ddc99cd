package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"landledger/internal/config"
	"landledger/internal/core"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestNewMetricsExpvar(t *testing.T) {
	rec, h, err := newMetrics(config.MetricsExpvar)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	ev, ok := rec.(*core.ExpvarMetricsRecorder)
	if !ok {
		t.Fatalf("expected expvar recorder, got %T", rec)
	}
	ev.Observe(context.Background(), "create_project", true, time.Millisecond)
	body := scrape(t, h)
	if !strings.Contains(body, ev.Name()) || !strings.Contains(body, "create_project") {
		t.Fatalf("expvar output should carry the recorder:\n%s", body)
	}
}

func TestNewMetricsPrometheus(t *testing.T) {
	rec, h, err := newMetrics(config.MetricsPrometheus)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if _, ok := rec.(*core.PrometheusMetricsRecorder); !ok {
		t.Fatalf("expected prometheus recorder, got %T", rec)
	}
	rec.Observe(context.Background(), "create_project", false, time.Millisecond)
	body := scrape(t, h)
	if !strings.Contains(body, `landledger_service_operations_total{operation="create_project",status="error"} 1`) {
		t.Fatalf("missing service counter:\n%s", body)
	}
}

func TestOpenTracer(t *testing.T) {
	tracer, closer, err := openTracer("")
	if err != nil || tracer != nil || closer != nil {
		t.Fatalf("empty output should disable tracing: %v %v %v", tracer, closer, err)
	}
	tracer, closer, err = openTracer("stderr")
	if err != nil || tracer == nil || closer != nil {
		t.Fatalf("stderr tracer: %v %v %v", tracer, closer, err)
	}
	if _, _, err := openTracer(t.TempDir() + "/missing/spans.jsonl"); err == nil {
		t.Fatal("expected error for an unwritable trace path")
	}
}
