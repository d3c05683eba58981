package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGranularity(t *testing.T) {
	tests := []struct {
		in      string
		want    Granularity
		wantErr bool
	}{
		{"day", GranularityDay, false},
		{"dia", GranularityDay, false},
		{"MES", GranularityMonth, false},
		{"año", GranularityYear, false},
		{"year", GranularityYear, false},
		{"week", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseGranularity(tt.in)
			if tt.wantErr {
				var perr *ParameterError
				assert.True(t, errors.As(err, &perr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewHistogramQuery(t *testing.T) {
	q, err := NewHistogramQuery("Lluvia", "mes", "2025", "")
	require.NoError(t, err)
	assert.Equal(t, "lluvia", q.Kind)
	assert.Equal(t, GranularityMonth, q.Granularity)
	require.NotNil(t, q.Year)
	assert.Equal(t, 2025, *q.Year)
	assert.Nil(t, q.Month)

	for _, tc := range []struct{ kind, gran, year, month, param string }{
		{"", "day", "", "", "precipitation"},
		{"lluvia", "", "", "", "type"},
		{"lluvia", "day", "abc", "", "year"},
		{"lluvia", "day", "0", "", "year"},
		{"lluvia", "day", "2025", "13", "month"},
	} {
		_, err := NewHistogramQuery(tc.kind, tc.gran, tc.year, tc.month)
		var perr *ParameterError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, tc.param, perr.Parameter)
	}
}

func TestGranularityLabel(t *testing.T) {
	assert.Equal(t, "2025-10-05", GranularityDay.Label(BucketRow{Year: 2025, Month: 10, Day: 5}))
	assert.Equal(t, "2025-01", GranularityMonth.Label(BucketRow{Year: 2025, Month: 1}))
	assert.Equal(t, "2025", GranularityYear.Label(BucketRow{Year: 2025}))
}

func TestCreateSiteRequestValidation(t *testing.T) {
	lat, lon := -34.123456789, -58.5
	req := CreateSiteRequest{Latitude: &lat, Longitude: &lon, ZoneID: 1, PrecipitationID: 1}

	site, err := req.ToSite(time.Now())
	require.NoError(t, err)
	assert.Equal(t, -34.1234568, site.Latitude)

	badLat := 91.0
	req.Latitude = &badLat
	_, err = req.ToSite(time.Now())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "latitude", verr.Field)

	req.Latitude = nil
	_, err = req.ToSite(time.Now())
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "latitude", verr.Field)
}

func TestCreateZoneRequestValidation(t *testing.T) {
	zone, err := (&CreateZoneRequest{Locality: " Centro "}).ToZone(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Centro", zone.Locality)

	_, err = (&CreateZoneRequest{}).ToZone(time.Now())
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
