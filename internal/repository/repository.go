package repository

import (
	"context"
	"time"

	"precipitation-platform/internal/models"
)

// ReferenceRepository provides data access for the dimension tables
type ReferenceRepository interface {
	// Zone operations
	CreateZone(ctx context.Context, zone *models.Zone) error
	ListZones(ctx context.Context) ([]*models.Zone, error)
	GetZone(ctx context.Context, id int64) (*models.Zone, error)
	GetZoneByLocality(ctx context.Context, locality string) (*models.Zone, error)
	ListZonesWithSites(ctx context.Context) ([]*models.ZoneWithSites, error)
	DeleteZone(ctx context.Context, id int64) error

	// Site operations
	CreateSite(ctx context.Context, site *models.Site) error
	ListSites(ctx context.Context, zoneID *int64) ([]*models.Site, error)
	GetSite(ctx context.Context, id int64) (*models.Site, error)

	// Lookup tables
	ListPrecipitationKinds(ctx context.Context) ([]*models.PrecipitationKind, error)
	CreatePrecipitationKind(ctx context.Context, kind *models.PrecipitationKind) error
	ListUnits(ctx context.Context) ([]*models.UnitOfMeasure, error)
	CreateUnit(ctx context.Context, unit *models.UnitOfMeasure) error
	ListInstruments(ctx context.Context) ([]*models.Instrument, error)
	CreateInstrument(ctx context.Context, instrument *models.Instrument) error
	ListSamples(ctx context.Context) ([]*models.Sample, error)
	CreateSample(ctx context.Context, sample *models.Sample) error
}

// ReportRepository persists reports together with their detail variant
type ReportRepository interface {
	// CreateReport writes the report and its single detail atomically and
	// assigns the generated ids
	CreateReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id int64) (*models.Report, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]*models.Report, int, error)
	UpdateReport(ctx context.Context, id int64, patch models.ReportPatch, now time.Time) (*models.Report, error)
	DeleteReport(ctx context.Context, id int64) error
	AvailableYears(ctx context.Context) ([]int, error)
}

// AggregationRepository computes totals on read; nothing is materialized
type AggregationRepository interface {
	HistogramBuckets(ctx context.Context, query models.HistogramQuery) ([]models.BucketRow, error)
	ZoneTotals(ctx context.Context) ([]models.ZoneTotal, error)
	ZoneAccumulation(ctx context.Context, zoneID int64) (*models.ZoneAccumulation, error)
}

// Store is the full persistence surface used by the services
type Store interface {
	ReferenceRepository
	ReportRepository
	AggregationRepository

	HealthCheck(ctx context.Context) error
}

// ReportFilter defines filters for listing reports
type ReportFilter struct {
	SiteID        *int64
	UserID        *int64
	Type          *models.ReportType
	Precipitation *string
	Year          *int
	Limit         int
	Offset        int
}
