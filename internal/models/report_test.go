package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }
func int64Ptr(i int64) *int64 { return &i }

func validRegularRequest() CreateReportRequest {
	return CreateReportRequest{
		Date:            "2025-01-10",
		Type:            "regular",
		UserID:          1,
		InstrumentID:    2,
		PrecipitationID: 3,
		SiteID:          4,
		Amount:          json.RawMessage(`12.5`),
		UnitID:          1,
	}
}

func TestCreateReportRequestRegular(t *testing.T) {
	req := validRegularRequest()
	req.Note = strPtr("  llovizna ")

	report, err := req.ToReport(testNow)
	require.NoError(t, err)

	assert.Equal(t, ReportTypeRegular, report.Type())
	assert.Equal(t, "2025-01-10", report.Date.Format(DateLayout))
	assert.Equal(t, "llovizna", *report.Note)
	require.NotNil(t, report.Regular())
	assert.Nil(t, report.Breakage())
	assert.True(t, report.Regular().Amount.Equal(decimal.RequireFromString("12.5")))
	assert.Equal(t, testNow, report.CreatedAt)
}

func TestCreateReportRequestBreakage(t *testing.T) {
	req := CreateReportRequest{
		Date:            "2025-01-10T15:04:05-03:00",
		Type:            "rotura",
		UserID:          1,
		InstrumentID:    2,
		PrecipitationID: 3,
		SiteID:          4,
		Damage:          strPtr("pluviometro roto"),
		Amount:          json.RawMessage(`99`),
	}

	report, err := req.ToReport(testNow)
	require.NoError(t, err)

	assert.Equal(t, ReportTypeBreakage, report.Type())
	assert.Nil(t, report.Regular())
	require.NotNil(t, report.Breakage())
	assert.Equal(t, "pluviometro roto", report.Breakage().Damage)
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), report.Date)
}

func TestCreateReportRequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreateReportRequest)
		field  string
	}{
		{"missing type", func(r *CreateReportRequest) { r.Type = "" }, "type"},
		{"missing date", func(r *CreateReportRequest) { r.Date = "" }, "date"},
		{"bad date", func(r *CreateReportRequest) { r.Date = "10/01/2025" }, "date"},
		{"missing site", func(r *CreateReportRequest) { r.SiteID = 0 }, "site_id"},
		{"missing user", func(r *CreateReportRequest) { r.UserID = 0 }, "user_id"},
		{"missing amount", func(r *CreateReportRequest) { r.Amount = nil }, "amount"},
		{"null amount", func(r *CreateReportRequest) { r.Amount = json.RawMessage(`null`) }, "amount"},
		{"text amount", func(r *CreateReportRequest) { r.Amount = json.RawMessage(`"mucho"`) }, "amount"},
		{"negative amount", func(r *CreateReportRequest) { r.Amount = json.RawMessage(`-1`) }, "amount"},
		{"huge amount", func(r *CreateReportRequest) { r.Amount = json.RawMessage(`1000000000`) }, "amount"},
		{"too precise amount", func(r *CreateReportRequest) { r.Amount = json.RawMessage(`1.2345`) }, "amount"},
		{"missing unit", func(r *CreateReportRequest) { r.UnitID = 0 }, "unit_id"},
		{"bad sample", func(r *CreateReportRequest) { r.SampleID = int64Ptr(-2) }, "sample_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRegularRequest()
			tt.mutate(&req)

			_, err := req.ToReport(testNow)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCreateReportRequestBreakageRequiresDamage(t *testing.T) {
	req := validRegularRequest()
	req.Type = "rotura"
	req.Damage = strPtr("   ")

	_, err := req.ToReport(testNow)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "damage", verr.Field)
}

func TestCreateReportRequestInvalidDiscriminator(t *testing.T) {
	req := validRegularRequest()
	req.Type = "granizo"

	_, err := req.ToReport(testNow)
	var derr *DiscriminatorError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "granizo", derr.Value)
}

func TestCreateReportRequestAmountForms(t *testing.T) {
	for _, raw := range []string{`7`, `7.000`, `"7"`, `" 7.0 "`} {
		req := validRegularRequest()
		req.Amount = json.RawMessage(raw)

		report, err := req.ToReport(testNow)
		require.NoError(t, err, raw)
		assert.True(t, report.Regular().Amount.Equal(decimal.NewFromInt(7)), raw)
	}
}

func TestCreateReportRequestUnitAlias(t *testing.T) {
	req := validRegularRequest()
	req.UnitID = 0
	req.UnitedMeasureID = 2

	report, err := req.ToReport(testNow)
	require.NoError(t, err)
	assert.Equal(t, int64(2), report.Regular().UnitID)
}

func TestReportJSONCarriesOneVariant(t *testing.T) {
	report := &Report{
		ID:              9,
		Date:            time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC),
		UserID:          1,
		InstrumentID:    2,
		PrecipitationID: 3,
		SiteID:          4,
	}
	report.SetDetail(&RegularMeasurement{ID: 1, Amount: decimal.RequireFromString("10.5"), UnitID: 1})

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "regular", body["type"])
	assert.Equal(t, "2025-01-10", body["date"])
	assert.Nil(t, body["breakage_instrument"])

	regular := body["report_regular"].(map[string]interface{})
	assert.Equal(t, 10.5, regular["amount"])
	assert.Equal(t, float64(9), regular["report_id"])

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ReportTypeRegular, decoded.Type())
	assert.True(t, decoded.Regular().Amount.Equal(decimal.RequireFromString("10.5")))
}

func TestUpdateReportRequestToPatch(t *testing.T) {
	var req UpdateReportRequest
	require.NoError(t, json.Unmarshal([]byte(`{"note":"revisado","report_regular":{"amount":"4.25"}}`), &req))

	patch, err := req.ToPatch()
	require.NoError(t, err)
	assert.Equal(t, "revisado", *patch.Note)
	assert.Nil(t, patch.SiteID)
	require.NotNil(t, patch.Amount)
	assert.True(t, patch.Amount.Equal(decimal.RequireFromString("4.25")))

	req = UpdateReportRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"report_regular":{"amount":null}}`), &req))
	patch, err = req.ToPatch()
	require.NoError(t, err)
	assert.True(t, patch.IsEmpty())

	req = UpdateReportRequest{SiteID: int64Ptr(0)}
	_, err = req.ToPatch()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "site_id", verr.Field)
}
