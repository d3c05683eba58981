package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"precipitation-platform/internal/services"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

// Services bundles the application services exposed over HTTP
type Services struct {
	Reports     *services.ReportService
	Reference   *services.ReferenceService
	Aggregation *services.AggregationService
}

// RouterOptions tunes the outer middleware
type RouterOptions struct {
	RequestTimeout time.Duration
	AllowedOrigin  string
	// MetricsHandler is mounted on /metrics when set
	MetricsHandler http.Handler
}

// NewRouter wires every API route behind the request id, CORS and timeout
// middleware
func NewRouter(svc Services, checker ReadinessChecker, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, opts RouterOptions) http.Handler {
	router := mux.NewRouter()
	router.Use(Instrument(logger, metricsCollector))

	NewReportHandler(svc.Reports, logger, metricsCollector).RegisterRoutes(router)
	NewAggregationHandler(svc.Aggregation, logger, metricsCollector).RegisterRoutes(router)
	NewReferenceHandler(svc.Reference, logger, metricsCollector).RegisterRoutes(router)
	NewHealthHandler(checker, logger, metricsCollector).RegisterRoutes(router)

	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	if opts.MetricsHandler != nil {
		router.Handle("/metrics", opts.MetricsHandler).Methods("GET")
	}

	origin := opts.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	return RequestID(CORS(origin)(Timeout(opts.RequestTimeout)(router)))
}
