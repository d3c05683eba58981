package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/repository"
)

// assemble copies the stored report and attaches its detail
func (st *state) assemble(id int64) (*models.Report, error) {
	stored, ok := st.reports[id]
	if !ok {
		return nil, notFound("report", id)
	}
	report := stored

	regular, hasRegular := st.regulars[id]
	breakage, hasBreakage := st.breakages[id]
	switch {
	case hasRegular && !hasBreakage:
		if regular.SampleID != nil {
			sampleID := *regular.SampleID
			regular.SampleID = &sampleID
		}
		report.Detail = &regular
	case hasBreakage && !hasRegular:
		report.Detail = &breakage
	default:
		return nil, &repository.StorageError{Op: "get report", Err: fmt.Errorf("report %d does not carry exactly one detail", id)}
	}
	return &report, nil
}

func copyOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func (s *Store) CreateReport(ctx context.Context, report *models.Report) error {
	if report.Detail == nil {
		return &models.DiscriminatorError{Value: ""}
	}

	var reportID, detailID int64
	err := s.update(ctx, func(st *state) error {
		site, ok := st.sites[report.SiteID]
		if !ok {
			return notFound("site", report.SiteID)
		}
		if _, ok := st.kinds[report.PrecipitationID]; !ok {
			return notFound("precipitation", report.PrecipitationID)
		}
		if site.PrecipitationID != report.PrecipitationID {
			return &models.ValidationError{
				Field:   "precipitation_id",
				Value:   fmt.Sprint(report.PrecipitationID),
				Message: fmt.Sprintf("site %d records a different precipitation kind", report.SiteID),
			}
		}
		if _, ok := st.instruments[report.InstrumentID]; !ok {
			return notFound("instrument", report.InstrumentID)
		}

		stored := *report
		stored.Detail = nil
		stored.Note = copyOptional(report.Note)
		stored.ImageRef = copyOptional(report.ImageRef)
		stored.AudioRef = copyOptional(report.AudioRef)
		stored.ID = st.next("reports")

		switch detail := report.Detail.(type) {
		case *models.RegularMeasurement:
			if _, ok := st.units[detail.UnitID]; !ok {
				return notFound("united_measure", detail.UnitID)
			}
			if detail.SampleID != nil {
				if _, ok := st.samples[*detail.SampleID]; !ok {
					return notFound("sample", *detail.SampleID)
				}
				for _, m := range st.regulars {
					if m.SampleID != nil && *m.SampleID == *detail.SampleID {
						return &repository.ConflictError{Resource: "sample", Message: fmt.Sprintf("sample %d is already linked to a measurement", *detail.SampleID)}
					}
				}
			}
			m := *detail
			m.ID = st.next("report_regulars")
			m.ReportID = stored.ID
			if detail.SampleID != nil {
				sampleID := *detail.SampleID
				m.SampleID = &sampleID
			}
			st.regulars[stored.ID] = m
			detailID = m.ID
		case *models.InstrumentBreakage:
			b := *detail
			b.ID = st.next("breakage_instruments")
			b.ReportID = stored.ID
			st.breakages[stored.ID] = b
			detailID = b.ID
		default:
			return &models.DiscriminatorError{Value: string(report.Type())}
		}

		st.reports[stored.ID] = stored
		reportID = stored.ID
		return nil
	})
	if err != nil {
		return err
	}

	report.ID = reportID
	switch detail := report.Detail.(type) {
	case *models.RegularMeasurement:
		detail.ID, detail.ReportID = detailID, reportID
	case *models.InstrumentBreakage:
		detail.ID, detail.ReportID = detailID, reportID
	}
	return nil
}

func (s *Store) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	var report *models.Report
	err := s.read(ctx, func(st *state) error {
		var err error
		report, err = st.assemble(id)
		return err
	})
	return report, err
}

func matches(st *state, f repository.ReportFilter, r models.Report) bool {
	if f.SiteID != nil && r.SiteID != *f.SiteID {
		return false
	}
	if f.UserID != nil && r.UserID != *f.UserID {
		return false
	}
	if f.Type != nil {
		_, regular := st.regulars[r.ID]
		if (*f.Type == models.ReportTypeRegular) != regular {
			return false
		}
	}
	if f.Precipitation != nil && st.kinds[r.PrecipitationID].Type != *f.Precipitation {
		return false
	}
	if f.Year != nil && r.Date.Year() != *f.Year {
		return false
	}
	return true
}

// ListReports orders by date then id, both descending
func (s *Store) ListReports(ctx context.Context, filter repository.ReportFilter) ([]*models.Report, int, error) {
	var (
		reports []*models.Report
		total   int
	)
	err := s.read(ctx, func(st *state) error {
		matched := make([]models.Report, 0)
		for _, r := range st.reports {
			if matches(st, filter, r) {
				matched = append(matched, r)
			}
		}
		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].Date.Equal(matched[j].Date) {
				return matched[i].Date.After(matched[j].Date)
			}
			return matched[i].ID > matched[j].ID
		})
		total = len(matched)

		start := min(filter.Offset, len(matched))
		end := len(matched)
		if filter.Limit > 0 {
			end = min(start+filter.Limit, len(matched))
		}

		reports = make([]*models.Report, 0, end-start)
		for _, r := range matched[start:end] {
			report, err := st.assemble(r.ID)
			if err != nil {
				return err
			}
			reports = append(reports, report)
		}
		return nil
	})
	return reports, total, err
}

// UpdateReport applies patch; an amount on a rotura report is ignored
func (s *Store) UpdateReport(ctx context.Context, id int64, patch models.ReportPatch, now time.Time) (*models.Report, error) {
	var updated *models.Report
	err := s.update(ctx, func(st *state) error {
		report, ok := st.reports[id]
		if !ok {
			return notFound("report", id)
		}

		if patch.Note != nil {
			report.Note = copyOptional(patch.Note)
		}
		if patch.SiteID != nil && *patch.SiteID != report.SiteID {
			site, ok := st.sites[*patch.SiteID]
			if !ok {
				return notFound("site", *patch.SiteID)
			}
			if site.PrecipitationID != report.PrecipitationID {
				return &models.ValidationError{
					Field:   "precipitation_id",
					Value:   fmt.Sprint(report.PrecipitationID),
					Message: fmt.Sprintf("site %d records a different precipitation kind", site.ID),
				}
			}
			report.SiteID = site.ID
		}
		if m, ok := st.regulars[id]; ok && patch.Amount != nil {
			m.Amount = *patch.Amount
			st.regulars[id] = m
		}
		report.UpdatedAt = now
		st.reports[id] = report

		var err error
		updated, err = st.assemble(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) DeleteReport(ctx context.Context, id int64) error {
	return s.update(ctx, func(st *state) error {
		if _, ok := st.reports[id]; !ok {
			return notFound("report", id)
		}
		delete(st.regulars, id)
		delete(st.breakages, id)
		delete(st.reports, id)
		return nil
	})
}

func (s *Store) AvailableYears(ctx context.Context) ([]int, error) {
	years := []int{}
	err := s.read(ctx, func(st *state) error {
		seen := map[int]bool{}
		for reportID := range st.regulars {
			year := st.reports[reportID].Date.Year()
			if !seen[year] {
				seen[year] = true
				years = append(years, year)
			}
		}
		sort.Sort(sort.Reverse(sort.IntSlice(years)))
		return nil
	})
	return years, err
}
