package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHealthCheck(t *testing.T) {
	started := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	h := NewHealthHandler(started)
	h.now = func() time.Time { return started.Add(90*time.Second + 500*time.Millisecond) }

	rr := httptest.NewRecorder()
	h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp.Status != "OK" {
		t.Errorf("expected status OK, got %q", resp.Status)
	}
	if resp.Timestamp != "2024-03-05T12:01:30Z" {
		t.Errorf("unexpected timestamp %q", resp.Timestamp)
	}
	if resp.Uptime != 90.5 {
		t.Errorf("expected uptime 90.5, got %v", resp.Uptime)
	}
}
