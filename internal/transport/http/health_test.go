package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "passing check",
			checks: map[string]HealthCheck{
				"inventory": func(context.Context) error { return nil },
			},
			wantStatus: http.StatusOK,
			wantBody:   "ok",
		},
		{
			name: "failing check",
			checks: map[string]HealthCheck{
				"inventory": func(context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `"failed":["inventory"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			HandleHealth(tt.checks, nil).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Fatalf("expected body to contain %q, got %q", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestHandleHealth_HidesDependencyErrors(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	checks := map[string]HealthCheck{
		"redis":    func(context.Context) error { return errors.New("dial tcp 10.0.0.7:6379: connection refused") },
		"postgres": func(context.Context) error { return errors.New("password authentication failed for user \"inventory\"") },
		"sqlite":   func(context.Context) error { return nil },
	}

	rec := httptest.NewRecorder()
	HandleHealth(checks, zap.New(core)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.7") || strings.Contains(rec.Body.String(), "password") {
		t.Fatalf("body leaks dependency error: %s", rec.Body.String())
	}
	var body struct {
		Status string   `json:"status"`
		Failed []string `json:"failed"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body.Status != "unavailable" || len(body.Failed) != 2 || body.Failed[0] != "postgres" || body.Failed[1] != "redis" {
		t.Fatalf("unexpected body: %+v", body)
	}

	entries := logs.FilterMessage("health check failed").All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 logged failures, got %d", len(entries))
	}
	for _, e := range entries {
		if e.ContextMap()["error"] == nil {
			t.Fatalf("expected logged error for %v", e.ContextMap()["dependency"])
		}
	}
}
