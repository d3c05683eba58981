package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"precipitation-platform/internal/models"
	"precipitation-platform/pkg/database"
	"precipitation-platform/pkg/logging"
)

const reportColumns = `
	r.id, r.date, r.note, r.image_ref, r.audio_ref, r.type,
	r.user_id, r.instrument_id, r.precipitation_id, r.site_id,
	r.created_at, r.updated_at,
	rr.id AS regular_id, rr.amount, rr.united_measure_id AS unit_id, rr.sample_id,
	bi.id AS breakage_id, bi.damage
`

const reportFrom = `
	FROM reports r
	LEFT JOIN report_regulars rr ON rr.report_id = r.id
	LEFT JOIN breakage_instruments bi ON bi.report_id = r.id
`

// reportRow is a report joined with both detail tables; exactly one side of
// the join is populated
type reportRow struct {
	ID              int64               `db:"id"`
	Date            time.Time           `db:"date"`
	Note            sql.NullString      `db:"note"`
	ImageRef        sql.NullString      `db:"image_ref"`
	AudioRef        sql.NullString      `db:"audio_ref"`
	Type            string              `db:"type"`
	UserID          int64               `db:"user_id"`
	InstrumentID    int64               `db:"instrument_id"`
	PrecipitationID int64               `db:"precipitation_id"`
	SiteID          int64               `db:"site_id"`
	CreatedAt       time.Time           `db:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at"`
	RegularID       sql.NullInt64       `db:"regular_id"`
	Amount          decimal.NullDecimal `db:"amount"`
	UnitID          sql.NullInt64       `db:"unit_id"`
	SampleID        sql.NullInt64       `db:"sample_id"`
	BreakageID      sql.NullInt64       `db:"breakage_id"`
	Damage          sql.NullString      `db:"damage"`
}

func (row *reportRow) toModel() (*models.Report, error) {
	report := &models.Report{
		ID:              row.ID,
		Date:            time.Date(row.Date.Year(), row.Date.Month(), row.Date.Day(), 0, 0, 0, 0, time.UTC),
		Note:            nullString(row.Note),
		ImageRef:        nullString(row.ImageRef),
		AudioRef:        nullString(row.AudioRef),
		UserID:          row.UserID,
		InstrumentID:    row.InstrumentID,
		PrecipitationID: row.PrecipitationID,
		SiteID:          row.SiteID,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}

	switch models.ReportType(row.Type) {
	case models.ReportTypeRegular:
		if !row.RegularID.Valid || row.BreakageID.Valid {
			return nil, fmt.Errorf("report %d of type regular does not carry exactly one measurement", row.ID)
		}
		m := &models.RegularMeasurement{
			ID:       row.RegularID.Int64,
			ReportID: row.ID,
			Amount:   row.Amount.Decimal,
			UnitID:   row.UnitID.Int64,
		}
		if row.SampleID.Valid {
			id := row.SampleID.Int64
			m.SampleID = &id
		}
		report.Detail = m
	case models.ReportTypeBreakage:
		if !row.BreakageID.Valid || row.RegularID.Valid {
			return nil, fmt.Errorf("report %d of type rotura does not carry exactly one breakage", row.ID)
		}
		report.Detail = &models.InstrumentBreakage{
			ID:       row.BreakageID.Int64,
			ReportID: row.ID,
			Damage:   row.Damage.String,
		}
	default:
		return nil, &models.DiscriminatorError{Value: row.Type}
	}
	return report, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// CreateReport inserts the report row and then its detail row inside one
// transaction. Any failure, including a cancelled ctx, leaves neither row.
func (s *postgresStore) CreateReport(ctx context.Context, report *models.Report) error {
	if report.Detail == nil {
		return &models.DiscriminatorError{Value: ""}
	}

	start := time.Now()
	err := s.db.WithTx(ctx, nil, func(tx *database.Tx) error {
		if err := checkReportReferences(ctx, tx, report); err != nil {
			return err
		}

		query := `
			INSERT INTO reports (
				date, note, image_ref, audio_ref, type,
				user_id, instrument_id, precipitation_id, site_id,
				created_at, updated_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id
		`
		err := tx.GetContext(ctx, "insert_report", &report.ID, query,
			report.Date,
			report.Note,
			report.ImageRef,
			report.AudioRef,
			string(report.Type()),
			report.UserID,
			report.InstrumentID,
			report.PrecipitationID,
			report.SiteID,
			report.CreatedAt,
			report.UpdatedAt,
		)
		if err != nil {
			return err
		}

		switch detail := report.Detail.(type) {
		case *models.RegularMeasurement:
			detail.ReportID = report.ID
			return tx.GetContext(ctx, "insert_report_regular", &detail.ID, `
				INSERT INTO report_regulars (report_id, report_type, amount, united_measure_id, sample_id)
				VALUES ($1, 'regular', $2, $3, $4)
				RETURNING id
			`, detail.ReportID, detail.Amount, detail.UnitID, detail.SampleID)
		case *models.InstrumentBreakage:
			detail.ReportID = report.ID
			return tx.GetContext(ctx, "insert_breakage_instrument", &detail.ID, `
				INSERT INTO breakage_instruments (report_id, report_type, damage)
				VALUES ($1, 'rotura', $2)
				RETURNING id
			`, detail.ReportID, detail.Damage)
		default:
			return &models.DiscriminatorError{Value: string(report.Type())}
		}
	})
	if err != nil {
		report.ID = 0
		return translate("create report", "report", err)
	}

	s.logger.Debug(ctx, "[REPO_CREATE_REPORT] Report created", logging.Fields{
		"report_id":   report.ID,
		"type":        report.Type(),
		"site_id":     report.SiteID,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return nil
}

// checkReportReferences validates every foreign reference of a new report so
// that the caller learns which one is missing
func checkReportReferences(ctx context.Context, tx *database.Tx, report *models.Report) error {
	var sitePrecipitation int64
	err := tx.GetContext(ctx, "report_site_precipitation", &sitePrecipitation,
		`SELECT precipitation_id FROM sites WHERE id = $1`, report.SiteID)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("site", report.SiteID)
	}
	if err != nil {
		return err
	}

	if ok, err := exists(ctx, tx, "report_precipitation_exists", "precipitations", report.PrecipitationID); err != nil {
		return err
	} else if !ok {
		return notFound("precipitation", report.PrecipitationID)
	}
	if sitePrecipitation != report.PrecipitationID {
		return precipitationMismatch(report.PrecipitationID, report.SiteID)
	}

	if ok, err := exists(ctx, tx, "report_instrument_exists", "instruments", report.InstrumentID); err != nil {
		return err
	} else if !ok {
		return notFound("instrument", report.InstrumentID)
	}

	m, ok := report.Detail.(*models.RegularMeasurement)
	if !ok {
		return nil
	}
	if ok, err := exists(ctx, tx, "report_unit_exists", "united_measures", m.UnitID); err != nil {
		return err
	} else if !ok {
		return notFound("united_measure", m.UnitID)
	}
	if m.SampleID == nil {
		return nil
	}
	if ok, err := exists(ctx, tx, "report_sample_exists", "samples", *m.SampleID); err != nil {
		return err
	} else if !ok {
		return notFound("sample", *m.SampleID)
	}

	var linked bool
	err = tx.GetContext(ctx, "report_sample_linked", &linked,
		`SELECT EXISTS (SELECT 1 FROM report_regulars WHERE sample_id = $1)`, *m.SampleID)
	if err != nil {
		return err
	}
	if linked {
		return &ConflictError{Resource: "sample", Message: fmt.Sprintf("sample %d is already linked to a measurement", *m.SampleID)}
	}
	return nil
}

func precipitationMismatch(precipitationID, siteID int64) *models.ValidationError {
	return &models.ValidationError{
		Field:   "precipitation_id",
		Value:   fmt.Sprint(precipitationID),
		Message: fmt.Sprintf("site %d records a different precipitation kind", siteID),
	}
}

// GetReport retrieves a report with its detail
func (s *postgresStore) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	var row reportRow
	err := s.db.GetContext(ctx, "get_report", &row, "SELECT "+reportColumns+reportFrom+" WHERE r.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("report", id)
	}
	if err != nil {
		return nil, translate("get report", "report", err)
	}

	report, err := row.toModel()
	if err != nil {
		return nil, &StorageError{Op: "get report", Err: err}
	}
	return report, nil
}

// ListReports retrieves reports with filtering and pagination, newest first
func (s *postgresStore) ListReports(ctx context.Context, filter ReportFilter) ([]*models.Report, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.SiteID != nil {
		where += fmt.Sprintf(" AND r.site_id = $%d", argNum)
		args = append(args, *filter.SiteID)
		argNum++
	}
	if filter.UserID != nil {
		where += fmt.Sprintf(" AND r.user_id = $%d", argNum)
		args = append(args, *filter.UserID)
		argNum++
	}
	if filter.Type != nil {
		where += fmt.Sprintf(" AND r.type = $%d", argNum)
		args = append(args, string(*filter.Type))
		argNum++
	}
	if filter.Precipitation != nil {
		where += fmt.Sprintf(" AND r.precipitation_id IN (SELECT id FROM precipitations WHERE type = $%d)", argNum)
		args = append(args, *filter.Precipitation)
		argNum++
	}
	if filter.Year != nil {
		where += fmt.Sprintf(" AND EXTRACT(YEAR FROM r.date)::int = $%d", argNum)
		args = append(args, *filter.Year)
		argNum++
	}

	var totalCount int
	if err := s.db.GetContext(ctx, "count_reports", &totalCount, "SELECT COUNT(*) FROM reports r"+where, args...); err != nil {
		return nil, 0, translate("count reports", "report", err)
	}

	query := "SELECT " + reportColumns + reportFrom + where
	query += " ORDER BY r.date DESC, r.id DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, filter.Limit, filter.Offset)

	var rows []reportRow
	if err := s.db.SelectContext(ctx, "list_reports", &rows, query, args...); err != nil {
		return nil, 0, translate("list reports", "report", err)
	}

	reports := make([]*models.Report, 0, len(rows))
	for i := range rows {
		report, err := rows[i].toModel()
		if err != nil {
			return nil, 0, &StorageError{Op: "list reports", Err: err}
		}
		reports = append(reports, report)
	}
	return reports, totalCount, nil
}

// UpdateReport applies patch under a row lock. An amount on a rotura report
// is ignored so that no measurement is ever attached to it.
func (s *postgresStore) UpdateReport(ctx context.Context, id int64, patch models.ReportPatch, now time.Time) (*models.Report, error) {
	var updated *models.Report

	err := s.db.WithTx(ctx, nil, func(tx *database.Tx) error {
		var current struct {
			Type            string         `db:"type"`
			Note            sql.NullString `db:"note"`
			SiteID          int64          `db:"site_id"`
			PrecipitationID int64          `db:"precipitation_id"`
		}
		err := tx.GetContext(ctx, "lock_report", &current,
			`SELECT type, note, site_id, precipitation_id FROM reports WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("report", id)
		}
		if err != nil {
			return err
		}

		note := nullString(current.Note)
		if patch.Note != nil {
			note = patch.Note
		}
		siteID := current.SiteID
		if patch.SiteID != nil && *patch.SiteID != current.SiteID {
			var sitePrecipitation int64
			err := tx.GetContext(ctx, "report_site_precipitation", &sitePrecipitation,
				`SELECT precipitation_id FROM sites WHERE id = $1`, *patch.SiteID)
			if errors.Is(err, sql.ErrNoRows) {
				return notFound("site", *patch.SiteID)
			}
			if err != nil {
				return err
			}
			if sitePrecipitation != current.PrecipitationID {
				return precipitationMismatch(current.PrecipitationID, *patch.SiteID)
			}
			siteID = *patch.SiteID
		}

		if _, err := tx.ExecContext(ctx, "update_report",
			`UPDATE reports SET note = $1, site_id = $2, updated_at = $3 WHERE id = $4`,
			note, siteID, now, id); err != nil {
			return err
		}

		if patch.Amount != nil && models.ReportType(current.Type) == models.ReportTypeRegular {
			if _, err := tx.ExecContext(ctx, "update_report_regular",
				`UPDATE report_regulars SET amount = $1 WHERE report_id = $2`,
				*patch.Amount, id); err != nil {
				return err
			}
		}

		var row reportRow
		if err := tx.GetContext(ctx, "get_report", &row, "SELECT "+reportColumns+reportFrom+" WHERE r.id = $1", id); err != nil {
			return err
		}
		updated, err = row.toModel()
		return err
	})
	if err != nil {
		return nil, translate("update report", "report", err)
	}

	s.logger.Debug(ctx, "[REPO_UPDATE_REPORT] Report updated", logging.Fields{
		"report_id": id,
		"site_id":   updated.SiteID,
	})
	return updated, nil
}

// DeleteReport removes the detail rows and then the report in one transaction
func (s *postgresStore) DeleteReport(ctx context.Context, id int64) error {
	err := s.db.WithTx(ctx, nil, func(tx *database.Tx) error {
		if _, err := tx.ExecContext(ctx, "delete_report_regular", `DELETE FROM report_regulars WHERE report_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "delete_breakage_instrument", `DELETE FROM breakage_instruments WHERE report_id = $1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "delete_report", `DELETE FROM reports WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return notFound("report", id)
		}
		return nil
	})
	return translate("delete report", "report", err)
}

// AvailableYears lists the distinct years that have regular measurements
func (s *postgresStore) AvailableYears(ctx context.Context) ([]int, error) {
	query := `
		SELECT DISTINCT EXTRACT(YEAR FROM r.date)::int AS year
		FROM reports r
		JOIN report_regulars rr ON rr.report_id = r.id
		ORDER BY year DESC
	`
	years := []int{}
	if err := s.db.SelectContext(ctx, "available_years", &years, query); err != nil {
		return nil, translate("available years", "report", err)
	}
	return years, nil
}
