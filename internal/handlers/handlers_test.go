package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"precipitation-platform/internal/repository/memory"
	"precipitation-platform/internal/services"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

type apiFixture struct {
	handler    http.Handler
	zoneID     int64
	siteID     int64
	instrument int64
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	store := memory.NewSeeded()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	logger := logging.NewNopLogger()
	collector := metrics.NewTestCollector()

	handler := NewRouter(Services{
		Reports:     services.NewReportService(store, logger, collector, clock),
		Reference:   services.NewReferenceService(store, logger, collector, clock),
		Aggregation: services.NewAggregationService(store, logger, collector),
	}, store, logger, collector, RouterOptions{RequestTimeout: 5 * time.Second})

	f := &apiFixture{handler: handler}

	var zone struct{ ID int64 }
	f.do(t, "POST", "/api/zones", `{"locality": "Centro"}`, http.StatusCreated, &zone)
	f.zoneID = zone.ID

	var site struct{ ID int64 }
	f.do(t, "POST", "/api/sites", fmt.Sprintf(`{"latitude": -34.6037, "longitude": -58.3816, "zone_id": %d, "precipitation_id": 1}`, f.zoneID), http.StatusCreated, &site)
	f.siteID = site.ID

	var instrument struct{ ID int64 }
	f.do(t, "POST", "/api/instruments", `{"name": "Hellmann", "unit_id": 1, "precipitation_id": 1}`, http.StatusCreated, &instrument)
	f.instrument = instrument.ID
	return f
}

func (f *apiFixture) request(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) do(t *testing.T, method, path, body string, status int, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	rec := f.request(method, path, body)
	require.Equal(t, status, rec.Code, rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (f *apiFixture) regularBody(date string, amount interface{}) string {
	return fmt.Sprintf(`{"date": %q, "type": "regular", "user_id": 3, "instrument_id": %d, "precipitation_id": 1, "site_id": %d, "amount": %v, "unit_id": 1}`,
		date, f.instrument, f.siteID, amount)
}

func TestCreateAndGetReport(t *testing.T) {
	f := newAPI(t)

	var created map[string]interface{}
	f.do(t, "POST", "/api/reports", f.regularBody("2025-01-10", `"12.5"`), http.StatusCreated, &created)
	assert.Equal(t, "regular", created["type"])
	assert.Equal(t, "2025-01-10", created["date"])
	require.NotNil(t, created["report_regular"])
	assert.Nil(t, created["breakage_instrument"])

	var got map[string]interface{}
	f.do(t, "GET", fmt.Sprintf("/api/reports/%v", created["id"]), "", http.StatusOK, &got)
	regular := got["report_regular"].(map[string]interface{})
	assert.Equal(t, 12.5, regular["amount"])
}

func TestCreateReportErrorKinds(t *testing.T) {
	f := newAPI(t)

	tests := []struct {
		name   string
		body   string
		status int
		kind   string
		field  string
	}{
		{
			name:   "invalid discriminator",
			body:   fmt.Sprintf(`{"date": "2025-01-10", "type": "granizo", "user_id": 3, "instrument_id": %d, "precipitation_id": 1, "site_id": %d}`, f.instrument, f.siteID),
			status: http.StatusBadRequest,
			kind:   services.KindInvalidDiscriminator,
			field:  "type",
		},
		{
			name:   "missing amount",
			body:   f.regularBody("2025-01-10", "null"),
			status: http.StatusBadRequest,
			kind:   services.KindValidation,
			field:  "amount",
		},
		{
			name:   "unknown site",
			body:   fmt.Sprintf(`{"date": "2025-01-10", "type": "rotura", "user_id": 3, "instrument_id": %d, "precipitation_id": 1, "site_id": 999, "damage": "x"}`, f.instrument),
			status: http.StatusNotFound,
			kind:   services.KindNotFound,
		},
		{
			name:   "malformed body",
			body:   `{"date": `,
			status: http.StatusBadRequest,
			kind:   services.KindValidation,
			field:  "body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			f.do(t, "POST", "/api/reports", tt.body, tt.status, &resp)
			assert.Equal(t, tt.kind, resp.Kind)
			assert.Equal(t, tt.status, resp.Code)
			assert.Equal(t, tt.field, resp.Field)
			assert.NotEmpty(t, resp.Message)
		})
	}

	var page PaginatedResponse
	f.do(t, "GET", "/api/reports", "", http.StatusOK, &page)
	assert.Zero(t, page.Total)
}

func TestUpdateAndDeleteReport(t *testing.T) {
	f := newAPI(t)

	var created struct{ ID int64 }
	f.do(t, "POST", "/api/reports", f.regularBody("2025-01-10", 10), http.StatusCreated, &created)

	var updated map[string]interface{}
	f.do(t, "PUT", fmt.Sprintf("/api/reports/%d", created.ID), `{"note": "revisado", "report_regular": {"amount": 11}}`, http.StatusOK, &updated)
	assert.Equal(t, "revisado", updated["note"])
	assert.Equal(t, 11.0, updated["report_regular"].(map[string]interface{})["amount"])

	f.do(t, "DELETE", fmt.Sprintf("/api/reports/%d", created.ID), "", http.StatusNoContent, nil)

	var resp ErrorResponse
	f.do(t, "GET", fmt.Sprintf("/api/reports/%d", created.ID), "", http.StatusNotFound, &resp)
	assert.Equal(t, services.KindNotFound, resp.Kind)
}

func TestHistogramEndpoint(t *testing.T) {
	f := newAPI(t)
	for _, r := range []struct {
		date   string
		amount int
	}{{"2025-01-10", 10}, {"2025-01-15", 20}, {"2025-02-01", 5}} {
		f.do(t, "POST", "/api/reports", f.regularBody(r.date, r.amount), http.StatusCreated, nil)
	}

	rec := f.request("GET", "/api/histogram?type=month&precipitation=lluvia&year=2025", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"label": "2025-01", "value": 30}, {"label": "2025-02", "value": 5}]`, rec.Body.String())
	assert.Equal(t, "1", rec.Header().Get("X-Unit-ID"))

	again := f.request("GET", "/api/histogram?type=month&precipitation=lluvia&year=2025", "")
	assert.Equal(t, rec.Body.String(), again.Body.String())

	empty := f.request("GET", "/api/histogram?type=day&precipitation=nieve", "")
	require.Equal(t, http.StatusOK, empty.Code)
	assert.JSONEq(t, `[]`, empty.Body.String())

	var resp ErrorResponse
	f.do(t, "GET", "/api/histogram?type=week&precipitation=lluvia", "", http.StatusBadRequest, &resp)
	assert.Equal(t, services.KindInvalidParameter, resp.Kind)
	assert.Equal(t, "type", resp.Field)
}

func TestZoneTotalEndpoints(t *testing.T) {
	f := newAPI(t)
	f.do(t, "POST", "/api/reports", f.regularBody("2025-01-10", 15), http.StatusCreated, nil)

	var acc map[string]interface{}
	f.do(t, "GET", fmt.Sprintf("/api/zones/%d/total", f.zoneID), "", http.StatusOK, &acc)
	assert.Equal(t, "Centro", acc["locality"])
	assert.Equal(t, 15.0, acc["total_accumulated"])
	assert.Equal(t, 1.0, acc["site_count"])
	assert.Len(t, acc["sites"], 1)

	var totals []map[string]interface{}
	f.do(t, "GET", "/api/zones/totals", "", http.StatusOK, &totals)
	require.Len(t, totals, 1)

	var resp ErrorResponse
	f.do(t, "GET", "/api/zones/999/total", "", http.StatusNotFound, &resp)
	assert.Equal(t, services.KindNotFound, resp.Kind)
}

func TestDuplicateSiteIsConflict(t *testing.T) {
	f := newAPI(t)

	var resp ErrorResponse
	body := fmt.Sprintf(`{"latitude": -34.6037, "longitude": -58.3816, "zone_id": %d, "precipitation_id": 1}`, f.zoneID)
	f.do(t, "POST", "/api/sites", body, http.StatusConflict, &resp)
	assert.Equal(t, services.KindConflict, resp.Kind)
}

func TestReferenceLookups(t *testing.T) {
	f := newAPI(t)

	var kinds []map[string]interface{}
	f.do(t, "GET", "/api/precipitations", "", http.StatusOK, &kinds)
	assert.Len(t, kinds, 3)

	var zone map[string]interface{}
	f.do(t, "GET", "/api/zones/locality/Centro", "", http.StatusOK, &zone)
	assert.Equal(t, float64(f.zoneID), zone["id"])

	var zones []map[string]interface{}
	f.do(t, "GET", "/api/zones/sites", "", http.StatusOK, &zones)
	require.Len(t, zones, 1)
	assert.Len(t, zones[0]["sites"], 1)

	f.do(t, "DELETE", fmt.Sprintf("/api/zones/%d", f.zoneID), "", http.StatusNoContent, nil)
	f.do(t, "GET", fmt.Sprintf("/api/sites/%d", f.siteID), "", http.StatusNotFound, nil)
}

func TestMiddleware(t *testing.T) {
	f := newAPI(t)

	rec := f.request("GET", "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	preflight := f.request("OPTIONS", "/api/reports", "")
	assert.Equal(t, http.StatusNoContent, preflight.Code)
}

func TestReadiness(t *testing.T) {
	logger := logging.NewNopLogger()
	collector := metrics.NewTestCollector()

	rec := httptest.NewRecorder()
	NewHealthHandler(stubChecker{}, logger, collector).Ready(rec, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(stubChecker{err: errors.New("down")}, logger, collector).Ready(rec, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOpenAPIDocumentIsValidJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	OpenAPISpec(rec, httptest.NewRequest("GET", "/api/docs/openapi.json", nil))

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	paths := doc["paths"].(map[string]interface{})
	for _, path := range []string{"/api/reports", "/api/histogram", "/api/zones/{id}/total"} {
		assert.Contains(t, paths, path)
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(services.KindMixedUnits))
	assert.Equal(t, http.StatusInternalServerError, StatusFor("unknown"))
}
