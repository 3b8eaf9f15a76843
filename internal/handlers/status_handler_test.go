package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/jobhound/internal/services/status"
)

func newTestStatusHandler(register func(*status.Service)) *StatusHandler {
	logger := arbor.NewLogger()
	svc := status.NewService(logger)
	if register != nil {
		register(svc)
	}
	return NewStatusHandler(svc, logger)
}

func TestHealthz_AllHealthy(t *testing.T) {
	handler := newTestStatusHandler(func(svc *status.Service) {
		svc.Register("storage", func(ctx context.Context) error { return nil })
	})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.HealthzHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	components, ok := body["components"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected components map, got %T", body["components"])
	}
	if _, ok := components["storage"]; !ok {
		t.Error("expected storage component in payload")
	}
}

func TestHealthz_DegradedStillReturns200(t *testing.T) {
	handler := newTestStatusHandler(func(svc *status.Service) {
		svc.Register("embedder", func(ctx context.Context) error {
			return errors.New("connection refused")
		})
	})

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.HealthzHandler(rec, req)

	// Liveness stays 200 while the process runs; degradation is in the body
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "degraded" {
		t.Errorf("expected status degraded, got %v", body["status"])
	}
}

func TestHealthz_RejectsPost(t *testing.T) {
	handler := newTestStatusHandler(nil)

	req := httptest.NewRequest("POST", "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.HealthzHandler(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
