package services

import (
	"context"

	"github.com/jonboulle/clockwork"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/repository"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// ReportService files, updates and removes precipitation reports
type ReportService struct {
	repo    repository.ReportRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	clock   clockwork.Clock
}

// ReportPage is one page of a report listing
type ReportPage struct {
	Reports []*models.Report `json:"reports"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	Limit   int              `json:"limit"`
}

// NewReportService creates a new report service
func NewReportService(repo repository.ReportRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector, clock clockwork.Clock) *ReportService {
	return &ReportService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		clock:   clock,
	}
}

// Create validates req and stores the report and its detail atomically
func (s *ReportService) Create(ctx context.Context, req models.CreateReportRequest) (*models.Report, error) {
	report, err := req.ToReport(s.clock.Now().UTC())
	if err != nil {
		s.metrics.RecordIngestionError(ErrorKind(err))
		return nil, err
	}

	if err := s.repo.CreateReport(ctx, report); err != nil {
		kind := ErrorKind(err)
		s.metrics.RecordIngestionError(kind)
		if kind == KindStorage {
			s.logger.Error(ctx, "[REPORT_CREATE_ERROR] Failed to store report", logging.Fields{
				"site_id": report.SiteID,
				"type":    string(report.Type()),
			}, err)
		}
		return nil, err
	}

	s.metrics.RecordReportCreated(string(report.Type()))
	s.logger.Info(ctx, "[REPORT_CREATE] Report created", logging.Fields{
		"report_id":        report.ID,
		"type":             string(report.Type()),
		"site_id":          report.SiteID,
		"precipitation_id": report.PrecipitationID,
	})
	return report, nil
}

func (s *ReportService) Get(ctx context.Context, id int64) (*models.Report, error) {
	return s.repo.GetReport(ctx, id)
}

// List returns one page of reports. Pages start at 1; limit defaults to
// DefaultPageLimit and is capped at MaxPageLimit.
func (s *ReportService) List(ctx context.Context, filter repository.ReportFilter, page, limit int) (*ReportPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	limit = min(limit, MaxPageLimit)

	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	reports, total, err := s.repo.ListReports(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ReportPage{Reports: reports, Total: total, Page: page, Limit: limit}, nil
}

// Update applies the note, site and amount changes in req. An amount sent
// for a rotura report is ignored.
func (s *ReportService) Update(ctx context.Context, id int64, req models.UpdateReportRequest) (*models.Report, error) {
	patch, err := req.ToPatch()
	if err != nil {
		return nil, err
	}

	report, err := s.repo.UpdateReport(ctx, id, patch, s.clock.Now().UTC())
	if err != nil {
		return nil, err
	}

	s.metrics.ReportsUpdatedTotal.Inc()
	fields := logging.Fields{
		"report_id": id,
		"type":      string(report.Type()),
	}
	if patch.Amount != nil && report.Type() == models.ReportTypeBreakage {
		s.logger.Warn(ctx, "[REPORT_UPDATE] Amount ignored on rotura report", fields)
	} else {
		s.logger.Info(ctx, "[REPORT_UPDATE] Report updated", fields)
	}
	return report, nil
}

func (s *ReportService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteReport(ctx, id); err != nil {
		return err
	}
	s.metrics.ReportsDeletedTotal.Inc()
	s.logger.Info(ctx, "[REPORT_DELETE] Report deleted", logging.Fields{"report_id": id})
	return nil
}

// AvailableYears lists the years holding regular measurements, newest first
func (s *ReportService) AvailableYears(ctx context.Context) ([]int, error) {
	return s.repo.AvailableYears(ctx)
}
