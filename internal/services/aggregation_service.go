package services

import (
	"context"
	"sort"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/repository"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

// AggregationService computes histograms and zone accumulations. It never
// writes.
type AggregationService struct {
	repo    repository.AggregationRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewAggregationService creates a new aggregation service
func NewAggregationService(repo repository.AggregationRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AggregationService {
	return &AggregationService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Histogram sums the regular measurements of q.Kind per time bucket in
// ascending order. Buckets recorded in different units fail with
// MixedUnitsError.
func (s *AggregationService) Histogram(ctx context.Context, q models.HistogramQuery) (*models.Histogram, error) {
	timer := s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues("histogram"))
	defer timer.ObserveDuration()

	rows, err := s.repo.HistogramBuckets(ctx, q)
	if err != nil {
		return nil, err
	}

	histogram := &models.Histogram{
		Kind:        q.Kind,
		Granularity: q.Granularity,
		Buckets:     make([]models.HistogramBucket, 0, len(rows)),
	}
	if len(rows) == 0 {
		return histogram, nil
	}

	if units := distinctUnits(rows); len(units) > 1 {
		s.logger.Warn(ctx, "[HISTOGRAM_MIXED_UNITS] Refusing to add amounts in different units", logging.Fields{
			"precipitation": q.Kind,
			"units":         units,
		})
		return nil, &models.MixedUnitsError{Kind: q.Kind, UnitIDs: units}
	}

	unitID := rows[0].MinUnitID
	histogram.UnitID = &unitID
	for _, row := range rows {
		histogram.Buckets = append(histogram.Buckets, models.HistogramBucket{
			Label: q.Granularity.Label(row),
			Value: row.Value,
		})
	}
	s.metrics.HistogramBuckets.Observe(float64(len(histogram.Buckets)))

	s.logger.Debug(ctx, "[HISTOGRAM] Histogram computed", logging.Fields{
		"precipitation": q.Kind,
		"granularity":   string(q.Granularity),
		"buckets":       len(histogram.Buckets),
	})
	return histogram, nil
}

// distinctUnits returns the ascending set of unit ids seen across rows
func distinctUnits(rows []models.BucketRow) []int64 {
	seen := map[int64]bool{}
	units := []int64{}
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			units = append(units, id)
		}
	}
	for _, row := range rows {
		add(row.MinUnitID)
		add(row.MaxUnitID)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	return units
}

// ZoneTotals returns the accumulated amount of every zone
func (s *AggregationService) ZoneTotals(ctx context.Context) ([]models.ZoneTotal, error) {
	timer := s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues("zone_totals"))
	defer timer.ObserveDuration()

	return s.repo.ZoneTotals(ctx)
}

// ZoneAccumulation returns one zone's total with its per-site breakdown
func (s *AggregationService) ZoneAccumulation(ctx context.Context, zoneID int64) (*models.ZoneAccumulation, error) {
	timer := s.metrics.NewTimer(s.metrics.AggregationDuration.WithLabelValues("zone_accumulation"))
	defer timer.ObserveDuration()

	return s.repo.ZoneAccumulation(ctx, zoneID)
}
