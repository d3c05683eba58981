package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector provides application metrics collection
type Collector struct {
	// API
	APIRequestsTotal   *prometheus.CounterVec
	APIRequestDuration *prometheus.HistogramVec
	APIErrorsTotal     *prometheus.CounterVec

	// Ingestion
	ReportsCreatedTotal  *prometheus.CounterVec
	ReportsUpdatedTotal  prometheus.Counter
	ReportsDeletedTotal  prometheus.Counter
	IngestionErrorsTotal *prometheus.CounterVec
	ImportRowsTotal      *prometheus.CounterVec
	ImportDuration       prometheus.Histogram

	// Aggregation
	AggregationDuration *prometheus.HistogramVec
	HistogramBuckets    prometheus.Histogram

	// Database
	DBQueryDuration  *prometheus.HistogramVec
	DBConnectionPool *prometheus.GaugeVec
	DBErrorsTotal    *prometheus.CounterVec
}

// NewCollector registers the collector on the default Prometheus registry.
func NewCollector(namespace string) *Collector {
	return NewCollectorWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewTestCollector returns a collector bound to a private registry so tests
// can build as many as they need.
func NewTestCollector() *Collector {
	return NewCollectorWithRegisterer("test", prometheus.NewRegistry())
}

// NewCollectorWithRegisterer creates a collector whose metrics are registered on reg.
func NewCollectorWithRegisterer(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		APIRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests by endpoint, method, and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
			},
			[]string{"endpoint"},
		),

		APIErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors by kind and endpoint",
			},
			[]string{"error_kind", "endpoint"},
		),

		ReportsCreatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_created_total",
				Help:      "Reports committed by detail variant",
			},
			[]string{"type"},
		),

		ReportsUpdatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_updated_total",
				Help:      "Reports updated",
			},
		),

		ReportsDeletedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_deleted_total",
				Help:      "Reports deleted together with their detail",
			},
		),

		IngestionErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingestion_errors_total",
				Help:      "Rejected or failed report writes by error kind",
			},
			[]string{"error_kind"},
		),

		ImportRowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_rows_total",
				Help:      "CSV rows processed by the importer by outcome",
			},
			[]string{"outcome"},
		),

		ImportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "import_duration_seconds",
				Help:      "Duration of a full CSV import",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),

		AggregationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "aggregation_duration_seconds",
				Help:      "Duration of histogram and zone accumulation queries",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1.0},
			},
			[]string{"operation"},
		),

		HistogramBuckets: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "histogram_result_buckets",
				Help:      "Number of buckets returned per histogram request",
				Buckets:   []float64{0, 1, 5, 12, 31, 60, 120, 366, 1000},
			},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_query_duration_seconds",
				Help:      "Database query duration in seconds by query type",
				Buckets:   []float64{0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5},
			},
			[]string{"query_type"},
		),

		DBConnectionPool: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connection_pool",
				Help:      "Database connection pool statistics",
			},
			[]string{"state"}, // in_use, idle, total
		),

		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_errors_total",
				Help:      "Total number of database errors by type",
			},
			[]string{"error_type"},
		),
	}
}

// Timer measures an operation and reports it to an observer
type Timer struct {
	start    time.Time
	observer prometheus.Observer
}

// NewTimer starts a timer feeding the given observer
func (c *Collector) NewTimer(observer prometheus.Observer) *Timer {
	return &Timer{
		start:    time.Now(),
		observer: observer,
	}
}

// ObserveDuration records the elapsed time since timer creation
func (t *Timer) ObserveDuration() time.Duration {
	duration := time.Since(t.start)
	if t.observer != nil {
		t.observer.Observe(duration.Seconds())
	}
	return duration
}

func (c *Collector) RecordAPIRequest(endpoint, method, status string) {
	c.APIRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

func (c *Collector) RecordAPIError(errorKind, endpoint string) {
	c.APIErrorsTotal.WithLabelValues(errorKind, endpoint).Inc()
}

func (c *Collector) RecordReportCreated(reportType string) {
	c.ReportsCreatedTotal.WithLabelValues(reportType).Inc()
}

func (c *Collector) RecordIngestionError(errorKind string) {
	c.IngestionErrorsTotal.WithLabelValues(errorKind).Inc()
}

func (c *Collector) RecordImportRow(outcome string) {
	c.ImportRowsTotal.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordDBError(errorType string) {
	c.DBErrorsTotal.WithLabelValues(errorType).Inc()
}

// UpdateDBConnectionPool updates database connection pool metrics
func (c *Collector) UpdateDBConnectionPool(inUse, idle, total int) {
	c.DBConnectionPool.WithLabelValues("in_use").Set(float64(inUse))
	c.DBConnectionPool.WithLabelValues("idle").Set(float64(idle))
	c.DBConnectionPool.WithLabelValues("total").Set(float64(total))
}
