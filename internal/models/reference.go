package models

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Zone is an administrative locality grouping monitoring sites
type Zone struct {
	ID        int64     `json:"id" db:"id"`
	Locality  string    `json:"locality" db:"locality"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ZoneWithSites is a zone with its sites eager-loaded
type ZoneWithSites struct {
	Zone
	Sites []*Site `json:"sites"`
}

// Site is a fixed point bound to one precipitation kind. Locality and
// PrecipitationType are filled on reads that join the referenced rows.
type Site struct {
	ID                int64     `json:"id" db:"id"`
	Latitude          float64   `json:"latitude" db:"latitude"`
	Longitude         float64   `json:"longitude" db:"longitude"`
	ZoneID            int64     `json:"zone_id" db:"zone_id"`
	PrecipitationID   int64     `json:"precipitation_id" db:"precipitation_id"`
	Locality          string    `json:"locality,omitempty" db:"locality"`
	PrecipitationType string    `json:"precipitation_type,omitempty" db:"precipitation_type"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// PrecipitationKind is the reference entity behind lluvia, nieve, caudalimetro...
type PrecipitationKind struct {
	ID   int64  `json:"id" db:"id"`
	Type string `json:"type" db:"type"`
}

// UnitOfMeasure carries the scale and abbreviation used to display amounts
type UnitOfMeasure struct {
	ID           int64           `json:"id" db:"id"`
	ScaleValue   decimal.Decimal `json:"value_measure" db:"value_measure"`
	Abbreviation string          `json:"abbreviation" db:"abbreviation"`
}

type Instrument struct {
	ID              int64  `json:"id" db:"id"`
	Name            string `json:"name" db:"name"`
	Brand           string `json:"brand" db:"brand"`
	Model           string `json:"model" db:"model"`
	UnitID          int64  `json:"unit_id" db:"united_measure_id"`
	PrecipitationID int64  `json:"precipitation_id" db:"precipitation_id"`
}

// Sample is opaque to the core; only its identity is referenced by measurements
type Sample struct {
	ID        int64               `json:"id" db:"id"`
	Elevation decimal.NullDecimal `json:"elevation" db:"elevation"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
}

const maxLocalityLength = 255

type CreateZoneRequest struct {
	Locality string `json:"locality"`
}

// ToZone validates the request and stamps it with now
func (r *CreateZoneRequest) ToZone(now time.Time) (*Zone, error) {
	locality := strings.TrimSpace(r.Locality)
	if locality == "" {
		return nil, &ValidationError{Field: "locality", Message: "locality is required"}
	}
	if len(locality) > maxLocalityLength {
		return nil, &ValidationError{Field: "locality", Value: locality, Message: "locality must be at most 255 characters"}
	}
	return &Zone{Locality: locality, CreatedAt: now, UpdatedAt: now}, nil
}

type CreateSiteRequest struct {
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	ZoneID          int64    `json:"zone_id"`
	PrecipitationID int64    `json:"precipitation_id"`
}

// coordinatePrecision matches the NUMERIC(10,7) storage of coordinates
const coordinatePrecision = 1e7

// RoundCoordinate rounds to the stored precision so that equality checks
// agree with the database uniqueness constraint
func RoundCoordinate(v float64) float64 {
	return math.Round(v*coordinatePrecision) / coordinatePrecision
}

// ToSite validates coordinates and references
func (r *CreateSiteRequest) ToSite(now time.Time) (*Site, error) {
	if r.Latitude == nil {
		return nil, &ValidationError{Field: "latitude", Message: "latitude is required"}
	}
	if r.Longitude == nil {
		return nil, &ValidationError{Field: "longitude", Message: "longitude is required"}
	}
	lat, lon := *r.Latitude, *r.Longitude
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, &ValidationError{Field: "latitude", Value: formatFloat(lat), Message: "latitude must be between -90 and 90"}
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return nil, &ValidationError{Field: "longitude", Value: formatFloat(lon), Message: "longitude must be between -180 and 180"}
	}
	if r.ZoneID <= 0 {
		return nil, &ValidationError{Field: "zone_id", Message: "zone_id is required"}
	}
	if r.PrecipitationID <= 0 {
		return nil, &ValidationError{Field: "precipitation_id", Message: "precipitation_id is required"}
	}

	return &Site{
		Latitude:        RoundCoordinate(lat),
		Longitude:       RoundCoordinate(lon),
		ZoneID:          r.ZoneID,
		PrecipitationID: r.PrecipitationID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

type CreatePrecipitationKindRequest struct {
	Type string `json:"type"`
}

func (r *CreatePrecipitationKindRequest) ToKind() (*PrecipitationKind, error) {
	kind := strings.ToLower(strings.TrimSpace(r.Type))
	if kind == "" {
		return nil, &ValidationError{Field: "type", Message: "type is required"}
	}
	return &PrecipitationKind{Type: kind}, nil
}

type CreateUnitRequest struct {
	ScaleValue   decimal.Decimal `json:"value_measure"`
	Abbreviation string          `json:"abbreviation"`
}

func (r *CreateUnitRequest) ToUnit() (*UnitOfMeasure, error) {
	abbr := strings.TrimSpace(r.Abbreviation)
	if abbr == "" {
		return nil, &ValidationError{Field: "abbreviation", Message: "abbreviation is required"}
	}
	if !r.ScaleValue.IsPositive() {
		return nil, &ValidationError{Field: "value_measure", Value: r.ScaleValue.String(), Message: "value_measure must be positive"}
	}
	return &UnitOfMeasure{ScaleValue: r.ScaleValue, Abbreviation: abbr}, nil
}

type CreateInstrumentRequest struct {
	Name            string `json:"name"`
	Brand           string `json:"brand"`
	Model           string `json:"model"`
	UnitID          int64  `json:"unit_id"`
	PrecipitationID int64  `json:"precipitation_id"`
}

func (r *CreateInstrumentRequest) ToInstrument() (*Instrument, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	if r.UnitID <= 0 {
		return nil, &ValidationError{Field: "unit_id", Message: "unit_id is required"}
	}
	if r.PrecipitationID <= 0 {
		return nil, &ValidationError{Field: "precipitation_id", Message: "precipitation_id is required"}
	}
	return &Instrument{
		Name:            name,
		Brand:           strings.TrimSpace(r.Brand),
		Model:           strings.TrimSpace(r.Model),
		UnitID:          r.UnitID,
		PrecipitationID: r.PrecipitationID,
	}, nil
}

type CreateSampleRequest struct {
	Elevation decimal.NullDecimal `json:"elevation"`
}

func (r *CreateSampleRequest) ToSample(now time.Time) *Sample {
	return &Sample{Elevation: r.Elevation, CreatedAt: now}
}
