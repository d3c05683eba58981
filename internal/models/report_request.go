package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount bounds enforced at ingestion
var (
	MaxAmount      = decimal.New(1, 9)
	amountDecimals = int32(3)
)

// CreateReportRequest is the flat envelope plus detail fields accepted on create
type CreateReportRequest struct {
	Date            string          `json:"date"`
	Note            *string         `json:"note"`
	Image           *string         `json:"image"`
	Audio           *string         `json:"audio"`
	Type            string          `json:"type"`
	UserID          int64           `json:"user_id"`
	InstrumentID    int64           `json:"instrument_id"`
	PrecipitationID int64           `json:"precipitation_id"`
	SiteID          int64           `json:"site_id"`
	Amount          json.RawMessage `json:"amount"`
	UnitID          int64           `json:"unit_id"`
	UnitedMeasureID int64           `json:"united_measure_id"`
	SampleID        *int64          `json:"sample_id"`
	Damage          *string         `json:"damage"`
}

// ToReport validates the request and builds the report with its detail
// variant. Reference existence is checked by the store.
func (r *CreateReportRequest) ToReport(now time.Time) (*Report, error) {
	reportType, err := ParseReportType(strings.TrimSpace(r.Type))
	if err != nil {
		return nil, err
	}

	date, err := ParseReportDate(strings.TrimSpace(r.Date))
	if err != nil {
		return nil, err
	}

	for _, ref := range []struct {
		field string
		id    int64
	}{
		{"user_id", r.UserID},
		{"instrument_id", r.InstrumentID},
		{"precipitation_id", r.PrecipitationID},
		{"site_id", r.SiteID},
	} {
		if ref.id <= 0 {
			return nil, &ValidationError{Field: ref.field, Value: strconv.FormatInt(ref.id, 10), Message: ref.field + " is required"}
		}
	}

	report := &Report{
		Date:            date,
		Note:            trimOptional(r.Note),
		ImageRef:        trimOptional(r.Image),
		AudioRef:        trimOptional(r.Audio),
		UserID:          r.UserID,
		InstrumentID:    r.InstrumentID,
		PrecipitationID: r.PrecipitationID,
		SiteID:          r.SiteID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	switch reportType {
	case ReportTypeRegular:
		amount, err := ParseAmountJSON(r.Amount)
		if err != nil {
			return nil, err
		}
		unitID := r.UnitID
		if unitID == 0 {
			unitID = r.UnitedMeasureID
		}
		if unitID <= 0 {
			return nil, &ValidationError{Field: "unit_id", Message: "unit_id is required for regular reports"}
		}
		if r.SampleID != nil && *r.SampleID <= 0 {
			return nil, &ValidationError{Field: "sample_id", Value: strconv.FormatInt(*r.SampleID, 10), Message: "sample_id must be positive"}
		}
		report.Detail = &RegularMeasurement{Amount: amount, UnitID: unitID, SampleID: r.SampleID}
	case ReportTypeBreakage:
		damage := ""
		if r.Damage != nil {
			damage = strings.TrimSpace(*r.Damage)
		}
		if damage == "" {
			return nil, &ValidationError{Field: "damage", Message: "damage is required for rotura reports"}
		}
		report.Detail = &InstrumentBreakage{Damage: damage}
	}

	return report, nil
}

// ParseAmountJSON accepts an amount sent as a JSON number or numeric string
func ParseAmountJSON(raw json.RawMessage) (decimal.Decimal, error) {
	if isJSONNull(raw) {
		return decimal.Decimal{}, &ValidationError{Field: "amount", Message: "amount is required"}
	}
	raw = bytes.TrimSpace(raw)

	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Decimal{}, &ValidationError{Field: "amount", Value: string(raw), Message: "amount must be numeric"}
		}
	}
	return ParseAmount(s)
}

// ParseAmount normalizes the textual form of an amount to a decimal
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, &ValidationError{Field: "amount", Message: "amount is required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &ValidationError{Field: "amount", Value: s, Message: "amount must be numeric"}
	}
	if d.IsNegative() {
		return decimal.Decimal{}, &ValidationError{Field: "amount", Value: s, Message: "amount must not be negative"}
	}
	if d.GreaterThanOrEqual(MaxAmount) {
		return decimal.Decimal{}, &ValidationError{Field: "amount", Value: s, Message: "amount must be less than 1000000000"}
	}
	if !d.Equal(d.Round(amountDecimals)) {
		return decimal.Decimal{}, &ValidationError{Field: "amount", Value: s, Message: "amount supports at most 3 decimal places"}
	}
	return d, nil
}

// UpdateReportRequest is the partial update body
type UpdateReportRequest struct {
	Note          *string `json:"note"`
	SiteID        *int64  `json:"site_id"`
	ReportRegular *struct {
		Amount json.RawMessage `json:"amount"`
	} `json:"report_regular"`
}

// ReportPatch holds the fields a report may change after creation
type ReportPatch struct {
	Note   *string
	SiteID *int64
	Amount *decimal.Decimal
}

// IsEmpty reports whether the patch changes nothing
func (p ReportPatch) IsEmpty() bool {
	return p.Note == nil && p.SiteID == nil && p.Amount == nil
}

// ToPatch validates the update body
func (r *UpdateReportRequest) ToPatch() (ReportPatch, error) {
	var patch ReportPatch
	if r.Note != nil {
		patch.Note = r.Note
	}
	if r.SiteID != nil {
		if *r.SiteID <= 0 {
			return ReportPatch{}, &ValidationError{Field: "site_id", Value: strconv.FormatInt(*r.SiteID, 10), Message: "site_id must be positive"}
		}
		patch.SiteID = r.SiteID
	}
	if r.ReportRegular != nil && !isJSONNull(r.ReportRegular.Amount) {
		amount, err := ParseAmountJSON(r.ReportRegular.Amount)
		if err != nil {
			return ReportPatch{}, err
		}
		patch.Amount = &amount
	}
	return patch, nil
}

func isJSONNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
