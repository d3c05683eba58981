package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts and sums are rendered as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// ReportType is the discriminator stored on every report
type ReportType string

const (
	ReportTypeRegular  ReportType = "regular"
	ReportTypeBreakage ReportType = "rotura"
)

// ParseReportType maps a wire value onto a known discriminator
func ParseReportType(s string) (ReportType, error) {
	switch ReportType(s) {
	case ReportTypeRegular, ReportTypeBreakage:
		return ReportType(s), nil
	case "":
		return "", &ValidationError{Field: "type", Message: "type is required"}
	default:
		return "", &DiscriminatorError{Value: s}
	}
}

// DateLayout is the calendar-date form used on the wire and in bucket labels
const DateLayout = "2006-01-02"

// ReportDetail is the closed set of detail variants a report carries. Exactly
// one variant is attached to a report and its type is derived from it.
type ReportDetail interface {
	ReportType() ReportType
	isReportDetail()
}

// RegularMeasurement is the quantitative detail of a regular report
type RegularMeasurement struct {
	ID       int64           `json:"id" db:"id"`
	ReportID int64           `json:"report_id" db:"report_id"`
	Amount   decimal.Decimal `json:"amount" db:"amount"`
	UnitID   int64           `json:"unit_id" db:"united_measure_id"`
	SampleID *int64          `json:"sample_id" db:"sample_id"`
}

func (*RegularMeasurement) ReportType() ReportType { return ReportTypeRegular }
func (*RegularMeasurement) isReportDetail()        {}

// InstrumentBreakage is the detail of a malfunction notice
type InstrumentBreakage struct {
	ID       int64  `json:"id" db:"id"`
	ReportID int64  `json:"report_id" db:"report_id"`
	Damage   string `json:"damage" db:"damage"`
}

func (*InstrumentBreakage) ReportType() ReportType { return ReportTypeBreakage }
func (*InstrumentBreakage) isReportDetail()        {}

// Report is the aggregate root of an observation
type Report struct {
	ID              int64
	Date            time.Time
	Note            *string
	ImageRef        *string
	AudioRef        *string
	UserID          int64
	InstrumentID    int64
	PrecipitationID int64
	SiteID          int64
	Detail          ReportDetail
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Type returns the discriminator implied by the attached detail
func (r *Report) Type() ReportType {
	if r.Detail == nil {
		return ""
	}
	return r.Detail.ReportType()
}

// Regular returns the measurement detail, or nil for other variants
func (r *Report) Regular() *RegularMeasurement {
	m, _ := r.Detail.(*RegularMeasurement)
	return m
}

// Breakage returns the breakage detail, or nil for other variants
func (r *Report) Breakage() *InstrumentBreakage {
	b, _ := r.Detail.(*InstrumentBreakage)
	return b
}

// SetDetail attaches a detail variant and points it back at the report
func (r *Report) SetDetail(d ReportDetail) {
	switch v := d.(type) {
	case *RegularMeasurement:
		v.ReportID = r.ID
	case *InstrumentBreakage:
		v.ReportID = r.ID
	}
	r.Detail = d
}

type reportJSON struct {
	ID                 int64               `json:"id"`
	Date               string              `json:"date"`
	Note               *string             `json:"note"`
	Image              *string             `json:"image"`
	Audio              *string             `json:"audio"`
	Type               ReportType          `json:"type"`
	UserID             int64               `json:"user_id"`
	InstrumentID       int64               `json:"instrument_id"`
	PrecipitationID    int64               `json:"precipitation_id"`
	SiteID             int64               `json:"site_id"`
	ReportRegular      *RegularMeasurement `json:"report_regular"`
	BreakageInstrument *InstrumentBreakage `json:"breakage_instrument"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// MarshalJSON renders the detail under the key of its variant; the other key is null
func (r Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportJSON{
		ID:                 r.ID,
		Date:               r.Date.Format(DateLayout),
		Note:               r.Note,
		Image:              r.ImageRef,
		Audio:              r.AudioRef,
		Type:               r.Type(),
		UserID:             r.UserID,
		InstrumentID:       r.InstrumentID,
		PrecipitationID:    r.PrecipitationID,
		SiteID:             r.SiteID,
		ReportRegular:      r.Regular(),
		BreakageInstrument: r.Breakage(),
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	})
}

// UnmarshalJSON reverses MarshalJSON; used by clients of the API
func (r *Report) UnmarshalJSON(data []byte) error {
	var raw reportJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	date, err := ParseReportDate(raw.Date)
	if err != nil {
		return err
	}

	*r = Report{
		ID:              raw.ID,
		Date:            date,
		Note:            raw.Note,
		ImageRef:        raw.Image,
		AudioRef:        raw.Audio,
		UserID:          raw.UserID,
		InstrumentID:    raw.InstrumentID,
		PrecipitationID: raw.PrecipitationID,
		SiteID:          raw.SiteID,
		CreatedAt:       raw.CreatedAt,
		UpdatedAt:       raw.UpdatedAt,
	}
	switch raw.Type {
	case ReportTypeRegular:
		if raw.ReportRegular == nil {
			return fmt.Errorf("regular report %d has no report_regular", raw.ID)
		}
		r.Detail = raw.ReportRegular
	case ReportTypeBreakage:
		if raw.BreakageInstrument == nil {
			return fmt.Errorf("rotura report %d has no breakage_instrument", raw.ID)
		}
		r.Detail = raw.BreakageInstrument
	default:
		return &DiscriminatorError{Value: string(raw.Type)}
	}
	return nil
}

// ParseReportDate accepts a calendar date or an RFC 3339 timestamp and
// truncates to the calendar date in UTC
func ParseReportDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, &ValidationError{Field: "date", Message: "date is required"}
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Value: s, Message: "date must be YYYY-MM-DD or RFC 3339"}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
