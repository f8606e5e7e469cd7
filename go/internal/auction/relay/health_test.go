package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakePublisher struct {
	connected bool
	stats     PublisherStats
}

func (f fakePublisher) Connected() bool       { return f.connected }
func (f fakePublisher) Stats() PublisherStats { return f.stats }

func TestRelayHealthChecker_Check(t *testing.T) {
	tests := []struct {
		name        string
		publisher   fakePublisher
		wantHealthy bool
		wantErrors  int
	}{
		{"healthy", fakePublisher{connected: true, stats: PublisherStats{Published: 10, Pending: 2}}, true, 0},
		{"disconnected", fakePublisher{connected: false}, false, 1},
		{"backlog full", fakePublisher{connected: true, stats: PublisherStats{Pending: 256}}, false, 1},
		{"both", fakePublisher{connected: false, stats: PublisherStats{Pending: 300}}, false, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := NewRelayHealthChecker(tt.publisher, 256).Check(context.Background())
			if status.Healthy != tt.wantHealthy {
				t.Errorf("Healthy = %v, want %v", status.Healthy, tt.wantHealthy)
			}
			if len(status.Errors) != tt.wantErrors {
				t.Errorf("Errors = %v, want %d", status.Errors, tt.wantErrors)
			}
		})
	}
}

func TestRelayHealthChecker_ServeHTTP(t *testing.T) {
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	checker := NewRelayHealthChecker(fakePublisher{
		connected: true,
		stats:     PublisherStats{Published: 7, Failed: 1, LastPublish: last},
	}, 256)

	rec := httptest.NewRecorder()
	checker.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/relay", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["events_published"] != 7.0 || body["events_failed"] != 1.0 {
		t.Errorf("body = %v, want 7 published and 1 failed", body)
	}
	if body["last_publish_time"] != float64(last.UnixMilli()) {
		t.Errorf("last_publish_time = %v, want %d", body["last_publish_time"], last.UnixMilli())
	}

	down := NewRelayHealthChecker(fakePublisher{}, 256)
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/relay", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
