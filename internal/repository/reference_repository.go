package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"precipitation-platform/internal/models"
	"precipitation-platform/pkg/database"
	"precipitation-platform/pkg/logging"
)

const siteColumns = `
	s.id, s.latitude, s.longitude, s.zone_id, s.precipitation_id,
	z.locality, p.type AS precipitation_type, s.created_at, s.updated_at
`

const siteFrom = `
	FROM sites s
	JOIN zones z ON z.id = s.zone_id
	JOIN precipitations p ON p.id = s.precipitation_id
`

// CreateZone creates a new zone
func (s *postgresStore) CreateZone(ctx context.Context, zone *models.Zone) error {
	query := `
		INSERT INTO zones (locality, created_at, updated_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	err := s.db.GetContext(ctx, "insert_zone", &zone.ID, query, zone.Locality, zone.CreatedAt, zone.UpdatedAt)
	if err != nil {
		return translate("create zone", "zone", err)
	}

	s.logger.Debug(ctx, "[REPO_CREATE_ZONE] Zone created", logging.Fields{
		"zone_id":  zone.ID,
		"locality": zone.Locality,
	})
	return nil
}

// ListZones retrieves every zone ordered by id
func (s *postgresStore) ListZones(ctx context.Context) ([]*models.Zone, error) {
	var zones []*models.Zone
	err := s.db.SelectContext(ctx, "list_zones", &zones,
		`SELECT id, locality, created_at, updated_at FROM zones ORDER BY id`)
	if err != nil {
		return nil, translate("list zones", "zone", err)
	}
	return zones, nil
}

// GetZone retrieves a zone by id
func (s *postgresStore) GetZone(ctx context.Context, id int64) (*models.Zone, error) {
	var zone models.Zone
	err := s.db.GetContext(ctx, "get_zone", &zone,
		`SELECT id, locality, created_at, updated_at FROM zones WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("zone", id)
	}
	if err != nil {
		return nil, translate("get zone", "zone", err)
	}
	return &zone, nil
}

// GetZoneByLocality retrieves a zone by its unique locality name
func (s *postgresStore) GetZoneByLocality(ctx context.Context, locality string) (*models.Zone, error) {
	var zone models.Zone
	err := s.db.GetContext(ctx, "get_zone_by_locality", &zone,
		`SELECT id, locality, created_at, updated_at FROM zones WHERE locality = $1`, locality)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "zone", ID: locality}
	}
	if err != nil {
		return nil, translate("get zone", "zone", err)
	}
	return &zone, nil
}

// ListZonesWithSites retrieves every zone with its sites eager-loaded
func (s *postgresStore) ListZonesWithSites(ctx context.Context) ([]*models.ZoneWithSites, error) {
	var (
		zones []*models.Zone
		sites []*models.Site
	)

	err := s.db.WithTx(ctx, readOnlySnapshot, func(tx *database.Tx) error {
		if err := tx.SelectContext(ctx, "list_zones", &zones,
			`SELECT id, locality, created_at, updated_at FROM zones ORDER BY id`); err != nil {
			return err
		}
		return tx.SelectContext(ctx, "list_sites", &sites,
			"SELECT "+siteColumns+siteFrom+" ORDER BY s.zone_id, s.id")
	})
	if err != nil {
		return nil, translate("list zones with sites", "zone", err)
	}

	byZone := make(map[int64][]*models.Site, len(zones))
	for _, site := range sites {
		byZone[site.ZoneID] = append(byZone[site.ZoneID], site)
	}

	result := make([]*models.ZoneWithSites, 0, len(zones))
	for _, zone := range zones {
		zoneSites := byZone[zone.ID]
		if zoneSites == nil {
			zoneSites = []*models.Site{}
		}
		result = append(result, &models.ZoneWithSites{Zone: *zone, Sites: zoneSites})
	}
	return result, nil
}

// DeleteZone removes a zone with its sites, their reports and the report
// details, in one transaction
func (s *postgresStore) DeleteZone(ctx context.Context, id int64) error {
	var removed struct {
		sites, reports int64
	}

	err := s.db.WithTx(ctx, nil, func(tx *database.Tx) error {
		var zoneID int64
		err := tx.GetContext(ctx, "lock_zone", &zoneID, `SELECT id FROM zones WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("zone", id)
		}
		if err != nil {
			return err
		}

		zoneReports := `SELECT r.id FROM reports r JOIN sites s ON s.id = r.site_id WHERE s.zone_id = $1`
		if _, err := tx.ExecContext(ctx, "delete_zone_regulars", "DELETE FROM report_regulars WHERE report_id IN ("+zoneReports+")", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "delete_zone_breakages", "DELETE FROM breakage_instruments WHERE report_id IN ("+zoneReports+")", id); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, "delete_zone_reports", `DELETE FROM reports WHERE site_id IN (SELECT id FROM sites WHERE zone_id = $1)`, id)
		if err != nil {
			return err
		}
		removed.reports, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, "delete_zone_sites", `DELETE FROM sites WHERE zone_id = $1`, id)
		if err != nil {
			return err
		}
		removed.sites, _ = res.RowsAffected()

		_, err = tx.ExecContext(ctx, "delete_zone", `DELETE FROM zones WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return translate("delete zone", "zone", err)
	}

	s.logger.Info(ctx, "[REPO_DELETE_ZONE] Zone deleted", logging.Fields{
		"zone_id":         id,
		"sites_deleted":   removed.sites,
		"reports_deleted": removed.reports,
	})
	return nil
}

// CreateSite registers a site after checking its references
func (s *postgresStore) CreateSite(ctx context.Context, site *models.Site) error {
	err := s.db.WithTx(ctx, nil, func(tx *database.Tx) error {
		if ok, err := exists(ctx, tx, "site_zone_exists", "zones", site.ZoneID); err != nil {
			return err
		} else if !ok {
			return notFound("zone", site.ZoneID)
		}
		if ok, err := exists(ctx, tx, "site_precipitation_exists", "precipitations", site.PrecipitationID); err != nil {
			return err
		} else if !ok {
			return notFound("precipitation", site.PrecipitationID)
		}

		var taken bool
		err := tx.GetContext(ctx, "site_coordinates_taken", &taken,
			`SELECT EXISTS (SELECT 1 FROM sites WHERE latitude = $1 AND longitude = $2)`,
			site.Latitude, site.Longitude)
		if err != nil {
			return err
		}
		if taken {
			return siteConflict(site)
		}

		query := `
			INSERT INTO sites (latitude, longitude, zone_id, precipitation_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		return tx.GetContext(ctx, "insert_site", &site.ID, query,
			site.Latitude,
			site.Longitude,
			site.ZoneID,
			site.PrecipitationID,
			site.CreatedAt,
			site.UpdatedAt,
		)
	})
	if database.IsUniqueViolation(err) {
		return siteConflict(site)
	}
	if err != nil {
		return translate("create site", "site", err)
	}

	s.logger.Debug(ctx, "[REPO_CREATE_SITE] Site created", logging.Fields{
		"site_id":   site.ID,
		"zone_id":   site.ZoneID,
		"latitude":  site.Latitude,
		"longitude": site.Longitude,
	})
	return nil
}

func siteConflict(site *models.Site) *ConflictError {
	return &ConflictError{
		Resource: "site",
		Message:  fmt.Sprintf("a site already exists at (%v, %v)", site.Latitude, site.Longitude),
	}
}

// ListSites retrieves sites, optionally restricted to one zone
func (s *postgresStore) ListSites(ctx context.Context, zoneID *int64) ([]*models.Site, error) {
	query := "SELECT " + siteColumns + siteFrom
	args := []interface{}{}
	if zoneID != nil {
		query += " WHERE s.zone_id = $1"
		args = append(args, *zoneID)
	}
	query += " ORDER BY s.id"

	var sites []*models.Site
	if err := s.db.SelectContext(ctx, "list_sites", &sites, query, args...); err != nil {
		return nil, translate("list sites", "site", err)
	}
	return sites, nil
}

// GetSite retrieves a site with its locality and precipitation type
func (s *postgresStore) GetSite(ctx context.Context, id int64) (*models.Site, error) {
	var site models.Site
	err := s.db.GetContext(ctx, "get_site", &site, "SELECT "+siteColumns+siteFrom+" WHERE s.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("site", id)
	}
	if err != nil {
		return nil, translate("get site", "site", err)
	}
	return &site, nil
}

func (s *postgresStore) ListPrecipitationKinds(ctx context.Context) ([]*models.PrecipitationKind, error) {
	var kinds []*models.PrecipitationKind
	if err := s.db.SelectContext(ctx, "list_precipitations", &kinds, `SELECT id, type FROM precipitations ORDER BY id`); err != nil {
		return nil, translate("list precipitations", "precipitation", err)
	}
	return kinds, nil
}

func (s *postgresStore) CreatePrecipitationKind(ctx context.Context, kind *models.PrecipitationKind) error {
	err := s.db.GetContext(ctx, "insert_precipitation", &kind.ID,
		`INSERT INTO precipitations (type) VALUES ($1) RETURNING id`, kind.Type)
	return translate("create precipitation", "precipitation", err)
}

func (s *postgresStore) ListUnits(ctx context.Context) ([]*models.UnitOfMeasure, error) {
	var units []*models.UnitOfMeasure
	if err := s.db.SelectContext(ctx, "list_units", &units,
		`SELECT id, value_measure, abbreviation FROM united_measures ORDER BY id`); err != nil {
		return nil, translate("list units", "united_measure", err)
	}
	return units, nil
}

func (s *postgresStore) CreateUnit(ctx context.Context, unit *models.UnitOfMeasure) error {
	err := s.db.GetContext(ctx, "insert_unit", &unit.ID,
		`INSERT INTO united_measures (value_measure, abbreviation) VALUES ($1, $2) RETURNING id`,
		unit.ScaleValue, unit.Abbreviation)
	return translate("create unit", "united_measure", err)
}

func (s *postgresStore) ListInstruments(ctx context.Context) ([]*models.Instrument, error) {
	var instruments []*models.Instrument
	if err := s.db.SelectContext(ctx, "list_instruments", &instruments,
		`SELECT id, name, brand, model, united_measure_id, precipitation_id FROM instruments ORDER BY id`); err != nil {
		return nil, translate("list instruments", "instrument", err)
	}
	return instruments, nil
}

// CreateInstrument relies on the foreign keys to reject unknown units and kinds
func (s *postgresStore) CreateInstrument(ctx context.Context, instrument *models.Instrument) error {
	query := `
		INSERT INTO instruments (name, brand, model, united_measure_id, precipitation_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := s.db.GetContext(ctx, "insert_instrument", &instrument.ID, query,
		instrument.Name,
		instrument.Brand,
		instrument.Model,
		instrument.UnitID,
		instrument.PrecipitationID,
	)
	return translate("create instrument", "instrument", err)
}

func (s *postgresStore) ListSamples(ctx context.Context) ([]*models.Sample, error) {
	var samples []*models.Sample
	if err := s.db.SelectContext(ctx, "list_samples", &samples,
		`SELECT id, elevation, created_at FROM samples ORDER BY id`); err != nil {
		return nil, translate("list samples", "sample", err)
	}
	return samples, nil
}

func (s *postgresStore) CreateSample(ctx context.Context, sample *models.Sample) error {
	err := s.db.GetContext(ctx, "insert_sample", &sample.ID,
		`INSERT INTO samples (elevation, created_at) VALUES ($1, $2) RETURNING id`,
		sample.Elevation, sample.CreatedAt)
	return translate("create sample", "sample", err)
}
