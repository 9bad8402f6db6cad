package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	s := NewServer("", func(context.Context) HealthStatus {
		return HealthStatus{Status: "down", Cycles: 3, LastError: "boom"}
	})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var got HealthStatus
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Cycles != 3 || got.LastError != "boom" {
		t.Fatalf("unexpected status %+v", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	BuildCyclesTotal.WithLabelValues("ok").Inc()
	rec := httptest.NewRecorder()
	NewServer("", nil).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "weave_build_cycles_total") {
		t.Fatalf("weave metrics missing from output")
	}
}

func TestInitTracingWithoutEndpoint(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}
