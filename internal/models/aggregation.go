package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Granularity is the width of a histogram bucket
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

var granularityAliases = map[string]Granularity{
	"day":   GranularityDay,
	"dia":   GranularityDay,
	"día":   GranularityDay,
	"month": GranularityMonth,
	"mes":   GranularityMonth,
	"year":  GranularityYear,
	"año":   GranularityYear,
	"anio":  GranularityYear,
}

// ParseGranularity accepts day|month|year and the legacy spanish names
func ParseGranularity(s string) (Granularity, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", &ParameterError{Parameter: "type", Message: "granularity is required"}
	}
	g, ok := granularityAliases[key]
	if !ok {
		return "", &ParameterError{Parameter: "type", Value: s, Message: "granularity must be one of day, month, year"}
	}
	return g, nil
}

// HistogramQuery selects the measurements of one precipitation kind
type HistogramQuery struct {
	Kind        string
	Granularity Granularity
	Year        *int
	Month       *int
}

// NewHistogramQuery parses the raw query parameters of a histogram request
func NewHistogramQuery(kind, granularity, year, month string) (HistogramQuery, error) {
	q := HistogramQuery{Kind: strings.ToLower(strings.TrimSpace(kind))}
	if q.Kind == "" {
		return HistogramQuery{}, &ParameterError{Parameter: "precipitation", Message: "precipitation kind is required"}
	}

	g, err := ParseGranularity(granularity)
	if err != nil {
		return HistogramQuery{}, err
	}
	q.Granularity = g

	if year != "" {
		y, err := parseBoundedInt("year", year, 1, 9999)
		if err != nil {
			return HistogramQuery{}, err
		}
		q.Year = &y
	}
	if month != "" {
		m, err := parseBoundedInt("month", month, 1, 12)
		if err != nil {
			return HistogramQuery{}, err
		}
		q.Month = &m
	}
	return q, nil
}

func parseBoundedInt(name, raw string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &ParameterError{Parameter: name, Value: raw, Message: name + " must be an integer"}
	}
	if v < lo || v > hi {
		return 0, &ParameterError{Parameter: name, Value: raw, Message: fmt.Sprintf("%s must be between %d and %d", name, lo, hi)}
	}
	return v, nil
}

// BucketRow is one grouped row as read from the store. Month and Day are
// zero when the granularity does not group by them.
type BucketRow struct {
	Year      int             `db:"year"`
	Month     int             `db:"month"`
	Day       int             `db:"day"`
	Value     decimal.Decimal `db:"value"`
	MinUnitID int64           `db:"min_unit_id"`
	MaxUnitID int64           `db:"max_unit_id"`
}

// Label formats the bucket key for g
func (g Granularity) Label(row BucketRow) string {
	switch g {
	case GranularityDay:
		return fmt.Sprintf("%04d-%02d-%02d", row.Year, row.Month, row.Day)
	case GranularityMonth:
		return fmt.Sprintf("%04d-%02d", row.Year, row.Month)
	default:
		return fmt.Sprintf("%04d", row.Year)
	}
}

type HistogramBucket struct {
	Label string          `json:"label"`
	Value decimal.Decimal `json:"value"`
}

// Histogram is an ascending sequence of buckets. UnitID is set when there
// is at least one bucket.
type Histogram struct {
	Kind        string            `json:"precipitation"`
	Granularity Granularity       `json:"granularity"`
	UnitID      *int64            `json:"unit_id"`
	Buckets     []HistogramBucket `json:"buckets"`
}

// ZoneTotal is the accumulated amount of every site in a zone
type ZoneTotal struct {
	ID               int64           `json:"id" db:"id"`
	Locality         string          `json:"locality" db:"locality"`
	TotalAccumulated decimal.Decimal `json:"total_accumulated" db:"total_accumulated"`
	SiteCount        int             `json:"site_count" db:"site_count"`
}

// SiteTotal is the per-site breakdown of a zone accumulation
type SiteTotal struct {
	SiteID      int64           `json:"site_id" db:"site_id"`
	Latitude    float64         `json:"latitude" db:"latitude"`
	Longitude   float64         `json:"longitude" db:"longitude"`
	SiteTotal   decimal.Decimal `json:"site_total" db:"site_total"`
	ReportCount int             `json:"report_count" db:"report_count"`
}

// ZoneAccumulation is the single-zone variant with its sites
type ZoneAccumulation struct {
	ZoneTotal
	Sites []SiteTotal `json:"sites"`
}
