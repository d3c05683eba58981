package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"precipitation-platform/internal/models"
)

type bucketKey struct {
	year, month, day int
}

func keyFor(g models.Granularity, date time.Time) bucketKey {
	switch g {
	case models.GranularityDay:
		return bucketKey{date.Year(), int(date.Month()), date.Day()}
	case models.GranularityMonth:
		return bucketKey{date.Year(), int(date.Month()), 0}
	default:
		return bucketKey{date.Year(), 0, 0}
	}
}

// HistogramBuckets groups the regular measurements of a kind the same way
// the SQL store does
func (s *Store) HistogramBuckets(ctx context.Context, q models.HistogramQuery) ([]models.BucketRow, error) {
	rows := []models.BucketRow{}
	err := s.read(ctx, func(st *state) error {
		buckets := map[bucketKey]*models.BucketRow{}
		for reportID, m := range st.regulars {
			report := st.reports[reportID]
			if st.kinds[report.PrecipitationID].Type != q.Kind {
				continue
			}
			if q.Year != nil && report.Date.Year() != *q.Year {
				continue
			}
			if q.Month != nil && int(report.Date.Month()) != *q.Month {
				continue
			}

			key := keyFor(q.Granularity, report.Date)
			b, ok := buckets[key]
			if !ok {
				b = &models.BucketRow{
					Year:      key.year,
					Month:     key.month,
					Day:       key.day,
					Value:     decimal.Zero,
					MinUnitID: m.UnitID,
					MaxUnitID: m.UnitID,
				}
				buckets[key] = b
			}
			b.Value = b.Value.Add(m.Amount)
			b.MinUnitID = min(b.MinUnitID, m.UnitID)
			b.MaxUnitID = max(b.MaxUnitID, m.UnitID)
		}

		for _, b := range buckets {
			rows = append(rows, *b)
		}
		sort.Slice(rows, func(i, j int) bool {
			a, b := rows[i], rows[j]
			if a.Year != b.Year {
				return a.Year < b.Year
			}
			if a.Month != b.Month {
				return a.Month < b.Month
			}
			return a.Day < b.Day
		})
		return nil
	})
	return rows, err
}

// siteTotal sums the measurements of every report on a site
func (st *state) siteTotal(siteID int64) models.SiteTotal {
	site := st.sites[siteID]
	total := models.SiteTotal{
		SiteID:    site.ID,
		Latitude:  site.Latitude,
		Longitude: site.Longitude,
		SiteTotal: decimal.Zero,
	}
	for reportID, report := range st.reports {
		if report.SiteID != siteID {
			continue
		}
		total.ReportCount++
		if m, ok := st.regulars[reportID]; ok {
			total.SiteTotal = total.SiteTotal.Add(m.Amount)
		}
	}
	return total
}

func (st *state) zoneAccumulation(zoneID int64) models.ZoneAccumulation {
	zone := st.zones[zoneID]
	acc := models.ZoneAccumulation{
		ZoneTotal: models.ZoneTotal{ID: zone.ID, Locality: zone.Locality, TotalAccumulated: decimal.Zero},
		Sites:     []models.SiteTotal{},
	}
	for _, siteID := range sortedKeys(st.sites) {
		if st.sites[siteID].ZoneID != zoneID {
			continue
		}
		site := st.siteTotal(siteID)
		acc.Sites = append(acc.Sites, site)
		acc.SiteCount++
		acc.TotalAccumulated = acc.TotalAccumulated.Add(site.SiteTotal)
	}
	return acc
}

func (s *Store) ZoneTotals(ctx context.Context) ([]models.ZoneTotal, error) {
	totals := []models.ZoneTotal{}
	err := s.read(ctx, func(st *state) error {
		for _, zoneID := range sortedKeys(st.zones) {
			totals = append(totals, st.zoneAccumulation(zoneID).ZoneTotal)
		}
		return nil
	})
	return totals, err
}

func (s *Store) ZoneAccumulation(ctx context.Context, zoneID int64) (*models.ZoneAccumulation, error) {
	var acc *models.ZoneAccumulation
	err := s.read(ctx, func(st *state) error {
		if _, ok := st.zones[zoneID]; !ok {
			return notFound("zone", zoneID)
		}
		a := st.zoneAccumulation(zoneID)
		acc = &a
		return nil
	})
	return acc, err
}
