package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

// ReadinessChecker reports whether the backing store can serve requests
type ReadinessChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes
type HealthHandler struct {
	responder
	checker ReadinessChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker ReadinessChecker, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *HealthHandler {
	return &HealthHandler{
		responder: responder{logger: logger, metrics: metricsCollector},
		checker:   checker,
	}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(r.Context(), "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.HealthCheck(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "[READINESS_CHECK] Store unavailable", logging.Fields{
			"error": err.Error(),
		})
		h.sendJSON(w, map[string]string{"status": "unavailable"}, http.StatusServiceUnavailable)
		return
	}
	h.sendJSON(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// RegisterRoutes registers the probe routes
func (h *HealthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/ready", h.Ready).Methods("GET")
}
