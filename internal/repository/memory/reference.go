package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/repository"
)

func decimalFromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func notFound(resource string, id int64) *repository.NotFoundError {
	return &repository.NotFoundError{Resource: resource, ID: strconv.FormatInt(id, 10)}
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (st *state) hydrateSite(site models.Site) *models.Site {
	site.Locality = st.zones[site.ZoneID].Locality
	site.PrecipitationType = st.kinds[site.PrecipitationID].Type
	return &site
}

func (s *Store) CreateZone(ctx context.Context, zone *models.Zone) error {
	return s.update(ctx, func(st *state) error {
		for _, z := range st.zones {
			if z.Locality == zone.Locality {
				return &repository.ConflictError{Resource: "zone", Message: fmt.Sprintf("zone %q already exists", zone.Locality)}
			}
		}
		zone.ID = st.next("zones")
		st.zones[zone.ID] = *zone
		return nil
	})
}

func (s *Store) ListZones(ctx context.Context) ([]*models.Zone, error) {
	var zones []*models.Zone
	err := s.read(ctx, func(st *state) error {
		zones = make([]*models.Zone, 0, len(st.zones))
		for _, id := range sortedKeys(st.zones) {
			z := st.zones[id]
			zones = append(zones, &z)
		}
		return nil
	})
	return zones, err
}

func (s *Store) GetZone(ctx context.Context, id int64) (*models.Zone, error) {
	var zone *models.Zone
	err := s.read(ctx, func(st *state) error {
		z, ok := st.zones[id]
		if !ok {
			return notFound("zone", id)
		}
		zone = &z
		return nil
	})
	return zone, err
}

func (s *Store) GetZoneByLocality(ctx context.Context, locality string) (*models.Zone, error) {
	var zone *models.Zone
	err := s.read(ctx, func(st *state) error {
		for _, z := range st.zones {
			if z.Locality == locality {
				zone = &z
				return nil
			}
		}
		return &repository.NotFoundError{Resource: "zone", ID: locality}
	})
	return zone, err
}

func (s *Store) ListZonesWithSites(ctx context.Context) ([]*models.ZoneWithSites, error) {
	var result []*models.ZoneWithSites
	err := s.read(ctx, func(st *state) error {
		result = make([]*models.ZoneWithSites, 0, len(st.zones))
		index := make(map[int64]*models.ZoneWithSites, len(st.zones))
		for _, id := range sortedKeys(st.zones) {
			zw := &models.ZoneWithSites{Zone: st.zones[id], Sites: []*models.Site{}}
			index[id] = zw
			result = append(result, zw)
		}
		for _, id := range sortedKeys(st.sites) {
			site := st.sites[id]
			if zw, ok := index[site.ZoneID]; ok {
				zw.Sites = append(zw.Sites, st.hydrateSite(site))
			}
		}
		return nil
	})
	return result, err
}

// DeleteZone removes the zone, its sites, their reports and details
func (s *Store) DeleteZone(ctx context.Context, id int64) error {
	return s.update(ctx, func(st *state) error {
		if _, ok := st.zones[id]; !ok {
			return notFound("zone", id)
		}
		for siteID, site := range st.sites {
			if site.ZoneID != id {
				continue
			}
			for reportID, report := range st.reports {
				if report.SiteID == siteID {
					delete(st.regulars, reportID)
					delete(st.breakages, reportID)
					delete(st.reports, reportID)
				}
			}
			delete(st.sites, siteID)
		}
		delete(st.zones, id)
		return nil
	})
}

func (s *Store) CreateSite(ctx context.Context, site *models.Site) error {
	return s.update(ctx, func(st *state) error {
		if _, ok := st.zones[site.ZoneID]; !ok {
			return notFound("zone", site.ZoneID)
		}
		if _, ok := st.kinds[site.PrecipitationID]; !ok {
			return notFound("precipitation", site.PrecipitationID)
		}
		for _, existing := range st.sites {
			if existing.Latitude == site.Latitude && existing.Longitude == site.Longitude {
				return &repository.ConflictError{
					Resource: "site",
					Message:  fmt.Sprintf("a site already exists at (%v, %v)", site.Latitude, site.Longitude),
				}
			}
		}
		site.ID = st.next("sites")
		st.sites[site.ID] = *site
		return nil
	})
}

func (s *Store) ListSites(ctx context.Context, zoneID *int64) ([]*models.Site, error) {
	var sites []*models.Site
	err := s.read(ctx, func(st *state) error {
		sites = make([]*models.Site, 0, len(st.sites))
		for _, id := range sortedKeys(st.sites) {
			site := st.sites[id]
			if zoneID != nil && site.ZoneID != *zoneID {
				continue
			}
			sites = append(sites, st.hydrateSite(site))
		}
		return nil
	})
	return sites, err
}

func (s *Store) GetSite(ctx context.Context, id int64) (*models.Site, error) {
	var site *models.Site
	err := s.read(ctx, func(st *state) error {
		found, ok := st.sites[id]
		if !ok {
			return notFound("site", id)
		}
		site = st.hydrateSite(found)
		return nil
	})
	return site, err
}

func (s *Store) ListPrecipitationKinds(ctx context.Context) ([]*models.PrecipitationKind, error) {
	var kinds []*models.PrecipitationKind
	err := s.read(ctx, func(st *state) error {
		kinds = make([]*models.PrecipitationKind, 0, len(st.kinds))
		for _, id := range sortedKeys(st.kinds) {
			k := st.kinds[id]
			kinds = append(kinds, &k)
		}
		return nil
	})
	return kinds, err
}

func (s *Store) CreatePrecipitationKind(ctx context.Context, kind *models.PrecipitationKind) error {
	return s.update(ctx, func(st *state) error {
		for _, k := range st.kinds {
			if k.Type == kind.Type {
				return &repository.ConflictError{Resource: "precipitation", Message: fmt.Sprintf("precipitation %q already exists", kind.Type)}
			}
		}
		kind.ID = st.next("precipitations")
		st.kinds[kind.ID] = *kind
		return nil
	})
}

func (s *Store) ListUnits(ctx context.Context) ([]*models.UnitOfMeasure, error) {
	var units []*models.UnitOfMeasure
	err := s.read(ctx, func(st *state) error {
		units = make([]*models.UnitOfMeasure, 0, len(st.units))
		for _, id := range sortedKeys(st.units) {
			u := st.units[id]
			units = append(units, &u)
		}
		return nil
	})
	return units, err
}

func (s *Store) CreateUnit(ctx context.Context, unit *models.UnitOfMeasure) error {
	return s.update(ctx, func(st *state) error {
		for _, u := range st.units {
			if u.Abbreviation == unit.Abbreviation {
				return &repository.ConflictError{Resource: "united_measure", Message: fmt.Sprintf("unit %q already exists", unit.Abbreviation)}
			}
		}
		unit.ID = st.next("united_measures")
		st.units[unit.ID] = *unit
		return nil
	})
}

func (s *Store) ListInstruments(ctx context.Context) ([]*models.Instrument, error) {
	var instruments []*models.Instrument
	err := s.read(ctx, func(st *state) error {
		instruments = make([]*models.Instrument, 0, len(st.instruments))
		for _, id := range sortedKeys(st.instruments) {
			in := st.instruments[id]
			instruments = append(instruments, &in)
		}
		return nil
	})
	return instruments, err
}

func (s *Store) CreateInstrument(ctx context.Context, instrument *models.Instrument) error {
	return s.update(ctx, func(st *state) error {
		if _, ok := st.units[instrument.UnitID]; !ok {
			return notFound("united_measure", instrument.UnitID)
		}
		if _, ok := st.kinds[instrument.PrecipitationID]; !ok {
			return notFound("precipitation", instrument.PrecipitationID)
		}
		instrument.ID = st.next("instruments")
		st.instruments[instrument.ID] = *instrument
		return nil
	})
}

func (s *Store) ListSamples(ctx context.Context) ([]*models.Sample, error) {
	var samples []*models.Sample
	err := s.read(ctx, func(st *state) error {
		samples = make([]*models.Sample, 0, len(st.samples))
		for _, id := range sortedKeys(st.samples) {
			sm := st.samples[id]
			samples = append(samples, &sm)
		}
		return nil
	})
	return samples, err
}

func (s *Store) CreateSample(ctx context.Context, sample *models.Sample) error {
	return s.update(ctx, func(st *state) error {
		sample.ID = st.next("samples")
		st.samples[sample.ID] = *sample
		return nil
	})
}
