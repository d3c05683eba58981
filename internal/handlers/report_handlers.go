package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/repository"
	"precipitation-platform/internal/services"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

// ReportHandler handles report API endpoints
type ReportHandler struct {
	responder
	reports *services.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports *services.ReportService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ReportHandler {
	return &ReportHandler{
		responder: responder{logger: logger, metrics: metricsCollector},
		reports:   reports,
	}
}

// CreateReport handles POST /api/reports
func (h *ReportHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReportRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendError(w, r, "/api/reports", err)
		return
	}

	report, err := h.reports.Create(r.Context(), req)
	if err != nil {
		h.sendError(w, r, "/api/reports", err)
		return
	}
	h.sendJSON(w, report, http.StatusCreated)
}

// ListReports handles GET /api/reports
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	filter, page, limit, err := parseReportFilter(r)
	if err != nil {
		h.sendError(w, r, "/api/reports", err)
		return
	}

	result, err := h.reports.List(r.Context(), filter, page, limit)
	if err != nil {
		h.sendError(w, r, "/api/reports", err)
		return
	}

	h.sendJSON(w, PaginatedResponse{
		Data:       result.Reports,
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: (result.Total + result.Limit - 1) / result.Limit,
	}, http.StatusOK)
}

func parseReportFilter(r *http.Request) (repository.ReportFilter, int, int, error) {
	var (
		filter repository.ReportFilter
		err    error
	)
	query := r.URL.Query()

	if filter.SiteID, err = queryID(r, "site_id"); err != nil {
		return filter, 0, 0, err
	}
	if filter.UserID, err = queryID(r, "user_id"); err != nil {
		return filter, 0, 0, err
	}
	if raw := strings.TrimSpace(query.Get("type")); raw != "" {
		reportType, err := models.ParseReportType(raw)
		if err != nil {
			return filter, 0, 0, err
		}
		filter.Type = &reportType
	}
	if kind := strings.ToLower(strings.TrimSpace(query.Get("precipitation"))); kind != "" {
		filter.Precipitation = &kind
	}
	if query.Get("year") != "" {
		year, err := queryInt(r, "year", 0)
		if err != nil {
			return filter, 0, 0, err
		}
		filter.Year = &year
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		return filter, 0, 0, err
	}
	limit, err := queryInt(r, "limit", services.DefaultPageLimit)
	if err != nil {
		return filter, 0, 0, err
	}
	return filter, page, limit, nil
}

// GetReport handles GET /api/reports/{id}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.sendError(w, r, "/api/reports/{id}", err)
		return
	}

	report, err := h.reports.Get(r.Context(), id)
	if err != nil {
		h.sendError(w, r, "/api/reports/{id}", err)
		return
	}
	h.sendJSON(w, report, http.StatusOK)
}

// UpdateReport handles PUT /api/reports/{id}
func (h *ReportHandler) UpdateReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.sendError(w, r, "/api/reports/{id}", err)
		return
	}

	var req models.UpdateReportRequest
	if err := decodeJSON(r, &req); err != nil {
		h.sendError(w, r, "/api/reports/{id}", err)
		return
	}

	report, err := h.reports.Update(r.Context(), id, req)
	if err != nil {
		h.sendError(w, r, "/api/reports/{id}", err)
		return
	}
	h.sendJSON(w, report, http.StatusOK)
}

// DeleteReport handles DELETE /api/reports/{id}
func (h *ReportHandler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.sendError(w, r, "/api/reports/{id}", err)
		return
	}

	if err := h.reports.Delete(r.Context(), id); err != nil {
		h.sendError(w, r, "/api/reports/{id}", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AvailableYears handles GET /api/reports/years
func (h *ReportHandler) AvailableYears(w http.ResponseWriter, r *http.Request) {
	years, err := h.reports.AvailableYears(r.Context())
	if err != nil {
		h.sendError(w, r, "/api/reports/years", err)
		return
	}
	h.sendJSON(w, map[string][]int{"years": years}, http.StatusOK)
}

// RegisterRoutes registers all report API routes
func (h *ReportHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/reports", h.CreateReport).Methods("POST")
	router.HandleFunc("/api/reports", h.ListReports).Methods("GET")
	router.HandleFunc("/api/reports/years", h.AvailableYears).Methods("GET")
	router.HandleFunc("/api/reports/{id:[0-9]+}", h.GetReport).Methods("GET")
	router.HandleFunc("/api/reports/{id:[0-9]+}", h.UpdateReport).Methods("PUT")
	router.HandleFunc("/api/reports/{id:[0-9]+}", h.DeleteReport).Methods("DELETE")
}
