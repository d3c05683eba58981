package services

import (
	"context"
	"strings"

	"github.com/jonboulle/clockwork"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/repository"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

// ReferenceService manages zones, sites and the lookup tables
type ReferenceService struct {
	repo    repository.ReferenceRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	clock   clockwork.Clock
}

// NewReferenceService creates a new reference data service
func NewReferenceService(repo repository.ReferenceRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, clock clockwork.Clock) *ReferenceService {
	return &ReferenceService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		clock:   clock,
	}
}

// CreateZone registers a zone with a unique locality
func (s *ReferenceService) CreateZone(ctx context.Context, req models.CreateZoneRequest) (*models.Zone, error) {
	zone, err := req.ToZone(s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateZone(ctx, zone); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[ZONE_CREATE] Zone created", logging.Fields{
		"zone_id":  zone.ID,
		"locality": zone.Locality,
	})
	return zone, nil
}

func (s *ReferenceService) ListZones(ctx context.Context) ([]*models.Zone, error) {
	return s.repo.ListZones(ctx)
}

func (s *ReferenceService) GetZone(ctx context.Context, id int64) (*models.Zone, error) {
	return s.repo.GetZone(ctx, id)
}

func (s *ReferenceService) GetZoneByLocality(ctx context.Context, locality string) (*models.Zone, error) {
	locality = strings.TrimSpace(locality)
	if locality == "" {
		return nil, &models.ValidationError{Field: "locality", Message: "locality is required"}
	}
	return s.repo.GetZoneByLocality(ctx, locality)
}

func (s *ReferenceService) ListZonesWithSites(ctx context.Context) ([]*models.ZoneWithSites, error) {
	return s.repo.ListZonesWithSites(ctx)
}

// DeleteZone removes a zone together with everything filed under it
func (s *ReferenceService) DeleteZone(ctx context.Context, id int64) error {
	if err := s.repo.DeleteZone(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "[ZONE_DELETE] Zone deleted", logging.Fields{"zone_id": id})
	return nil
}

// RegisterSite validates and stores a site; duplicate coordinates are a conflict
func (s *ReferenceService) RegisterSite(ctx context.Context, req models.CreateSiteRequest) (*models.Site, error) {
	site, err := req.ToSite(s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateSite(ctx, site); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "[SITE_REGISTER] Site registered", logging.Fields{
		"site_id":          site.ID,
		"zone_id":          site.ZoneID,
		"precipitation_id": site.PrecipitationID,
	})
	return s.repo.GetSite(ctx, site.ID)
}

func (s *ReferenceService) ListSites(ctx context.Context, zoneID *int64) ([]*models.Site, error) {
	return s.repo.ListSites(ctx, zoneID)
}

func (s *ReferenceService) GetSite(ctx context.Context, id int64) (*models.Site, error) {
	return s.repo.GetSite(ctx, id)
}

func (s *ReferenceService) ListPrecipitationKinds(ctx context.Context) ([]*models.PrecipitationKind, error) {
	return s.repo.ListPrecipitationKinds(ctx)
}

func (s *ReferenceService) CreatePrecipitationKind(ctx context.Context, req models.CreatePrecipitationKindRequest) (*models.PrecipitationKind, error) {
	kind, err := req.ToKind()
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreatePrecipitationKind(ctx, kind); err != nil {
		return nil, err
	}
	return kind, nil
}

func (s *ReferenceService) ListUnits(ctx context.Context) ([]*models.UnitOfMeasure, error) {
	return s.repo.ListUnits(ctx)
}

func (s *ReferenceService) CreateUnit(ctx context.Context, req models.CreateUnitRequest) (*models.UnitOfMeasure, error) {
	unit, err := req.ToUnit()
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateUnit(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

func (s *ReferenceService) ListInstruments(ctx context.Context) ([]*models.Instrument, error) {
	return s.repo.ListInstruments(ctx)
}

func (s *ReferenceService) CreateInstrument(ctx context.Context, req models.CreateInstrumentRequest) (*models.Instrument, error) {
	instrument, err := req.ToInstrument()
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateInstrument(ctx, instrument); err != nil {
		return nil, err
	}
	return instrument, nil
}

func (s *ReferenceService) ListSamples(ctx context.Context) ([]*models.Sample, error) {
	return s.repo.ListSamples(ctx)
}

func (s *ReferenceService) CreateSample(ctx context.Context, req models.CreateSampleRequest) (*models.Sample, error) {
	sample := req.ToSample(s.clock.Now().UTC())
	if err := s.repo.CreateSample(ctx, sample); err != nil {
		return nil, err
	}
	return sample, nil
}
