package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/services"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Field   string `json:"field,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

var statusByKind = map[string]int{
	services.KindValidation:           http.StatusBadRequest,
	services.KindInvalidDiscriminator: http.StatusBadRequest,
	services.KindInvalidParameter:     http.StatusBadRequest,
	services.KindNotFound:             http.StatusNotFound,
	services.KindConflict:             http.StatusConflict,
	services.KindMixedUnits:           http.StatusUnprocessableEntity,
	services.KindStorage:              http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status
func StatusFor(kind string) int {
	if status, ok := statusByKind[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// responder carries what every handler needs to write responses
type responder struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// sendJSON sends a JSON response
func (h responder) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError translates err into a structured error response. Storage
// failures are logged and their detail withheld from the caller.
func (h responder) sendError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	kind := services.ErrorKind(err)
	status := StatusFor(kind)
	h.metrics.RecordAPIError(kind, endpoint)

	response := ErrorResponse{
		Kind:    kind,
		Error:   http.StatusText(status),
		Message: err.Error(),
		Code:    status,
		Field:   errorField(err),
	}

	if kind == services.KindStorage {
		h.logger.Error(r.Context(), "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
			"method":   r.Method,
		}, err)
		response.Message = "the request could not be completed"
	}

	h.sendJSON(w, response, status)
}

func errorField(err error) string {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Field
	}
	var paramErr *models.ParameterError
	if errors.As(err, &paramErr) {
		return paramErr.Parameter
	}
	var discErr *models.DiscriminatorError
	if errors.As(err, &discErr) {
		return "type"
	}
	return ""
}

// decodeJSON reads a single JSON object from the request body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		return &models.ValidationError{Field: "body", Message: fmt.Sprintf("malformed JSON body: %v", err)}
	}
	return nil
}

// pathID parses the positive integer path variable name
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &models.ParameterError{Parameter: name, Value: raw, Message: name + " must be a positive integer"}
	}
	return id, nil
}

// queryID parses an optional positive integer query parameter
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, &models.ParameterError{Parameter: name, Value: raw, Message: name + " must be a positive integer"}
	}
	return &id, nil
}

// queryInt parses an optional integer query parameter, returning def when absent
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.ParameterError{Parameter: name, Value: raw, Message: name + " must be an integer"}
	}
	return v, nil
}
