package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"precipitation-platform/internal/models"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

// ImportColumns is the CSV header understood by the importer. Columns may
// appear in any order; the first six are required.
var ImportColumns = []string{
	"date", "type", "user_id", "instrument_id", "precipitation_id", "site_id",
	"amount", "unit_id", "sample_id", "damage", "note",
}

const requiredImportColumns = 6

// ImportService bulk-loads reports through the report service, one atomic
// create per row
type ImportService struct {
	reports *ReportService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// ImportResult contains import statistics
type ImportResult struct {
	TotalRows int
	Imported  int
	Failed    int
	Duration  time.Duration
	Errors    []string
}

// NewImportService creates a new import service
func NewImportService(reports *ReportService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ImportService {
	return &ImportService{
		reports: reports,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ImportFile imports the CSV file at path
func (s *ImportService) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return s.Import(ctx, file, path)
}

// Import reads reports from r. A row that fails validation or storage is
// counted and the run continues; an unreadable header or a cancelled
// context stops it.
func (s *ImportService) Import(ctx context.Context, r io.Reader, source string) (*ImportResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[IMPORT_START] Starting report import", logging.Fields{
		"source": source,
		"stage":  "INITIALIZATION",
	})

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Errors: make([]string, 0)}
	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("import interrupted: %w", err)
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		result.TotalRows++

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			s.fail(ctx, result, parseErr.StartLine, err)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to read row: %w", err)
		}
		line, _ := reader.FieldPos(0)

		req, err := columns.request(record)
		if err != nil {
			s.fail(ctx, result, line, err)
			continue
		}

		if _, err := s.reports.Create(ctx, req); err != nil {
			s.fail(ctx, result, line, err)
			continue
		}
		result.Imported++
		s.metrics.RecordImportRow("imported")
	}

	result.Duration = time.Since(startTime)
	s.metrics.ImportDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[IMPORT_COMPLETE] Report import completed", logging.Fields{
		"source":           source,
		"total_rows":       result.TotalRows,
		"imported":         result.Imported,
		"failed":           result.Failed,
		"duration_seconds": result.Duration.Seconds(),
		"stage":            "COMPLETE",
	})
	return result, nil
}

func (s *ImportService) fail(ctx context.Context, result *ImportResult, line int, err error) {
	kind := ErrorKind(err)
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		kind = "parse_error"
	}

	result.Failed++
	result.Errors = append(result.Errors, fmt.Sprintf("line %d: %s: %v", line, kind, err))
	s.metrics.RecordImportRow("failed")
	s.logger.Warn(ctx, "[IMPORT_ROW_ERROR] Row rejected", logging.Fields{
		"line":  line,
		"kind":  kind,
		"error": err.Error(),
	})
}

type columnIndex map[string]int

func indexColumns(header []string) (columnIndex, error) {
	columns := columnIndex{}
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range ImportColumns[:requiredImportColumns] {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header is missing columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

func (c columnIndex) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columnIndex) optional(record []string, name string) *string {
	v := c.get(record, name)
	if v == "" {
		return nil
	}
	return &v
}

func (c columnIndex) id(record []string, name string) (int64, error) {
	v := c.get(record, name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, &models.ValidationError{Field: name, Value: v, Message: name + " must be an integer"}
	}
	return id, nil
}

// request maps one CSV record onto a create request
func (c columnIndex) request(record []string) (models.CreateReportRequest, error) {
	req := models.CreateReportRequest{
		Date:   c.get(record, "date"),
		Type:   c.get(record, "type"),
		Note:   c.optional(record, "note"),
		Damage: c.optional(record, "damage"),
	}

	for _, field := range []struct {
		name string
		dst  *int64
	}{
		{"user_id", &req.UserID},
		{"instrument_id", &req.InstrumentID},
		{"precipitation_id", &req.PrecipitationID},
		{"site_id", &req.SiteID},
		{"unit_id", &req.UnitID},
	} {
		id, err := c.id(record, field.name)
		if err != nil {
			return models.CreateReportRequest{}, err
		}
		*field.dst = id
	}

	if c.get(record, "sample_id") != "" {
		sampleID, err := c.id(record, "sample_id")
		if err != nil {
			return models.CreateReportRequest{}, err
		}
		req.SampleID = &sampleID
	}

	if amount := c.get(record, "amount"); amount != "" {
		raw, err := json.Marshal(amount)
		if err != nil {
			return models.CreateReportRequest{}, err
		}
		req.Amount = raw
	}
	return req, nil
}
