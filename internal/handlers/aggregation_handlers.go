package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/services"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

// AggregationHandler handles histogram and zone total endpoints
type AggregationHandler struct {
	responder
	aggregation *services.AggregationService
}

// NewAggregationHandler creates a new aggregation handler
func NewAggregationHandler(aggregation *services.AggregationService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AggregationHandler {
	return &AggregationHandler{
		responder:   responder{logger: logger, metrics: metricsCollector},
		aggregation: aggregation,
	}
}

// Histogram handles GET /api/histogram?type=&precipitation=&year=&month=.
// The body is the ordered bucket array; the unit of measure travels in
// the X-Unit-ID header.
func (h *AggregationHandler) Histogram(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q, err := models.NewHistogramQuery(query.Get("precipitation"), query.Get("type"), query.Get("year"), query.Get("month"))
	if err != nil {
		h.sendError(w, r, "/api/histogram", err)
		return
	}

	histogram, err := h.aggregation.Histogram(r.Context(), q)
	if err != nil {
		h.sendError(w, r, "/api/histogram", err)
		return
	}
	if histogram.UnitID != nil {
		w.Header().Set("X-Unit-ID", strconv.FormatInt(*histogram.UnitID, 10))
	}
	h.sendJSON(w, histogram.Buckets, http.StatusOK)
}

// ZoneTotals handles GET /api/zones/totals
func (h *AggregationHandler) ZoneTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.aggregation.ZoneTotals(r.Context())
	if err != nil {
		h.sendError(w, r, "/api/zones/totals", err)
		return
	}
	h.sendJSON(w, totals, http.StatusOK)
}

// ZoneTotal handles GET /api/zones/{id}/total
func (h *AggregationHandler) ZoneTotal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.sendError(w, r, "/api/zones/{id}/total", err)
		return
	}

	acc, err := h.aggregation.ZoneAccumulation(r.Context(), id)
	if err != nil {
		h.sendError(w, r, "/api/zones/{id}/total", err)
		return
	}
	h.sendJSON(w, acc, http.StatusOK)
}

// RegisterRoutes registers all aggregation API routes
func (h *AggregationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/histogram", h.Histogram).Methods("GET")
	router.HandleFunc("/api/zones/totals", h.ZoneTotals).Methods("GET")
	router.HandleFunc("/api/zones/{id:[0-9]+}/total", h.ZoneTotal).Methods("GET")
}
