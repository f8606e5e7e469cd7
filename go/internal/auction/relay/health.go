package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// PublisherStats are the mirror's running counters.
type PublisherStats struct {
	Published   uint64
	Failed      uint64
	Pending     int
	LastPublish time.Time
}

// HealthStatus is the result of one health check.
type HealthStatus struct {
	Healthy       bool
	NATSConnected bool
	Stats         PublisherStats
	Errors        []string
}

// HealthChecker reports the health of the event mirror.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

type publisherState interface {
	Connected() bool
	Stats() PublisherStats
}

// RelayHealthChecker checks a publisher's connection and publish backlog.
type RelayHealthChecker struct {
	publisher  publisherState
	maxPending int
}

// NewRelayHealthChecker creates a checker that reports unhealthy when the
// connection is down or the async backlog reaches maxPending.
func NewRelayHealthChecker(publisher publisherState, maxPending int) *RelayHealthChecker {
	return &RelayHealthChecker{publisher: publisher, maxPending: maxPending}
}

func (h *RelayHealthChecker) Check(_ context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:       true,
		NATSConnected: h.publisher.Connected(),
		Stats:         h.publisher.Stats(),
		Errors:        []string{},
	}

	if !status.NATSConnected {
		status.Healthy = false
		status.Errors = append(status.Errors, "NATS disconnected")
	}
	if h.maxPending > 0 && status.Stats.Pending >= h.maxPending {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("publish backlog full: %d pending", status.Stats.Pending))
	}

	return status
}

// ServeHTTP answers with the status as JSON, 503 when unhealthy.
func (h *RelayHealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	response := map[string]interface{}{
		"healthy":          status.Healthy,
		"nats_connected":   status.NATSConnected,
		"events_published": status.Stats.Published,
		"events_failed":    status.Stats.Failed,
		"pending":          status.Stats.Pending,
		"errors":           status.Errors,
	}
	if !status.Stats.LastPublish.IsZero() {
		response["last_publish_time"] = status.Stats.LastPublish.UnixMilli()
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("failed to encode relay health")
	}
}
