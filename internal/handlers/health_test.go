package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/detalia/storefront-api/internal/domain"
)

type stubHealthRepo struct {
	report domain.HealthReport
	err    error
}

func (s *stubHealthRepo) Collect(context.Context) (domain.HealthReport, error) {
	return s.report, s.err
}

func TestHealthHandlersHealthz(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)
	handlers := NewHealthHandlers(
		WithHealthBuildInfo(BuildInfo{
			Version:     "1.0.0",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	handlers.Healthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["uptime"] != "30s" {
		t.Fatalf("expected uptime 30s, got %v", body["uptime"])
	}
	if body["version"] != "1.0.0" || body["commit"] != "abc123" {
		t.Fatalf("unexpected build info: %v", body)
	}
}

func TestHealthHandlersReadyzSuccess(t *testing.T) {
	now := time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)
	repo := &stubHealthRepo{
		report: domain.HealthReport{
			Status: domain.HealthStatusOK,
			Checks: map[string]domain.HealthCheck{
				"firestore": {Status: domain.HealthStatusOK, Detail: "ok", Latency: 12 * time.Millisecond, CheckedAt: now},
			},
			GeneratedAt: now,
		},
	}
	handlers := NewHealthHandlers(WithHealthReadiness(repo))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()

	handlers.Readyz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	checks, ok := body["checks"].(map[string]any)
	if !ok || checks["firestore"] == nil {
		t.Fatalf("expected firestore check, got %v", body["checks"])
	}
}

func TestHealthHandlersReadyzFailure(t *testing.T) {
	repo := &stubHealthRepo{
		report: domain.HealthReport{
			Status: domain.HealthStatusError,
			Checks: map[string]domain.HealthCheck{
				"firestore": {Status: domain.HealthStatusError, Detail: "context deadline exceeded"},
			},
		},
	}
	handlers := NewHealthHandlers(WithHealthReadiness(repo))

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()

	handlers.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
