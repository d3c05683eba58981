package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"precipitation-platform/internal/models"
	"precipitation-platform/pkg/database"
	"precipitation-platform/pkg/logging"
)

// bucketExpressions returns the month and day select expressions for g.
// Components a granularity does not group by are the constant 0.
func bucketExpressions(g models.Granularity) (month, day string) {
	switch g {
	case models.GranularityDay:
		return "EXTRACT(MONTH FROM r.date)::int", "EXTRACT(DAY FROM r.date)::int"
	case models.GranularityMonth:
		return "EXTRACT(MONTH FROM r.date)::int", "0"
	default:
		return "0", "0"
	}
}

// HistogramBuckets sums regular measurements of one precipitation kind per
// time bucket in ascending order. Breakage reports have no measurement row
// and drop out of the inner join.
func (s *postgresStore) HistogramBuckets(ctx context.Context, q models.HistogramQuery) ([]models.BucketRow, error) {
	start := time.Now()
	month, day := bucketExpressions(q.Granularity)

	query := fmt.Sprintf(`
		SELECT
			EXTRACT(YEAR FROM r.date)::int AS year,
			%s AS month,
			%s AS day,
			SUM(rr.amount) AS value,
			MIN(rr.united_measure_id) AS min_unit_id,
			MAX(rr.united_measure_id) AS max_unit_id
		FROM reports r
		JOIN precipitations p ON p.id = r.precipitation_id
		JOIN report_regulars rr ON rr.report_id = r.id
		WHERE p.type = $1
	`, month, day)
	args := []interface{}{q.Kind}
	argNum := 2

	if q.Year != nil {
		query += fmt.Sprintf(" AND EXTRACT(YEAR FROM r.date)::int = $%d", argNum)
		args = append(args, *q.Year)
		argNum++
	}
	if q.Month != nil {
		query += fmt.Sprintf(" AND EXTRACT(MONTH FROM r.date)::int = $%d", argNum)
		args = append(args, *q.Month)
	}
	query += " GROUP BY year, month, day ORDER BY year, month, day"

	rows := []models.BucketRow{}
	if err := s.db.SelectContext(ctx, "histogram_"+string(q.Granularity), &rows, query, args...); err != nil {
		return nil, translate("histogram", "report", err)
	}

	s.logger.Debug(ctx, "[REPO_HISTOGRAM] Buckets computed", logging.Fields{
		"precipitation": q.Kind,
		"granularity":   q.Granularity,
		"buckets":       len(rows),
		"duration_ms":   time.Since(start).Milliseconds(),
	})
	return rows, nil
}

const zoneTotalsQuery = `
	SELECT
		z.id,
		z.locality,
		COALESCE(SUM(rr.amount), 0) AS total_accumulated,
		COUNT(DISTINCT s.id) AS site_count
	FROM zones z
	LEFT JOIN sites s ON s.zone_id = z.id
	LEFT JOIN reports r ON r.site_id = s.id
	LEFT JOIN report_regulars rr ON rr.report_id = r.id
`

// ZoneTotals walks zone, site, report and measurement for every zone
func (s *postgresStore) ZoneTotals(ctx context.Context) ([]models.ZoneTotal, error) {
	totals := []models.ZoneTotal{}
	err := s.db.SelectContext(ctx, "zone_totals", &totals, zoneTotalsQuery+" GROUP BY z.id, z.locality ORDER BY z.id")
	if err != nil {
		return nil, translate("zone totals", "zone", err)
	}
	return totals, nil
}

// ZoneAccumulation reads the zone total and its per-site breakdown from one snapshot
func (s *postgresStore) ZoneAccumulation(ctx context.Context, zoneID int64) (*models.ZoneAccumulation, error) {
	acc := &models.ZoneAccumulation{Sites: []models.SiteTotal{}}

	err := s.db.WithTx(ctx, readOnlySnapshot, func(tx *database.Tx) error {
		err := tx.GetContext(ctx, "zone_total", &acc.ZoneTotal,
			zoneTotalsQuery+" WHERE z.id = $1 GROUP BY z.id, z.locality", zoneID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("zone", zoneID)
		}
		if err != nil {
			return err
		}

		return tx.SelectContext(ctx, "zone_site_totals", &acc.Sites, `
			SELECT
				s.id AS site_id,
				s.latitude,
				s.longitude,
				COALESCE(SUM(rr.amount), 0) AS site_total,
				COUNT(r.id) AS report_count
			FROM sites s
			LEFT JOIN reports r ON r.site_id = s.id
			LEFT JOIN report_regulars rr ON rr.report_id = r.id
			WHERE s.zone_id = $1
			GROUP BY s.id, s.latitude, s.longitude
			ORDER BY s.id
		`, zoneID)
	})
	if err != nil {
		return nil, translate("zone accumulation", "zone", err)
	}
	return acc, nil
}
