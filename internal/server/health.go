package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// GatewayState exposes the commit gateway's current acceptance state.
type GatewayState interface {
	Accepting() bool
	StateName() string
}

// SinkHealth implements HealthChecker for the table sink. Liveness is a
// process-level flag the run loop clears on fatal errors. Readiness
// reflects the commit gateway: a sink blocked on instant confirmation
// should not be handed new traffic.
type SinkHealth struct {
	gateway GatewayState
	alive   atomic.Bool
}

// NewSinkHealth creates a health checker over the commit gateway.
func NewSinkHealth(gateway GatewayState) *SinkHealth {
	h := &SinkHealth{gateway: gateway}
	h.alive.Store(true)
	return h
}

// MarkDead clears liveness after a fatal error.
func (h *SinkHealth) MarkDead() {
	h.alive.Store(false)
}

// Liveness reports whether the process should keep running.
func (h *SinkHealth) Liveness() bool {
	return h.alive.Load()
}

// Readiness reports whether the sink can accept records.
func (h *SinkHealth) Readiness(ctx context.Context) bool {
	return h.alive.Load() && h.gateway.Accepting()
}

// GetStatus reports per-component state for the readiness response.
func (h *SinkHealth) GetStatus() map[string]string {
	status := map[string]string{
		"gateway": h.gateway.StateName(),
	}
	if h.alive.Load() {
		status["process"] = "alive"
	} else {
		status["process"] = "dead"
	}
	return status
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
// Liveness probes should only fail if the process needs to be restarted.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Error("failed to encode liveness response", "error", err)
		}
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
// Readiness probes indicate if the application can handle traffic.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.GetStatus(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Error("failed to encode readiness response", "error", err)
		}
	}
}
