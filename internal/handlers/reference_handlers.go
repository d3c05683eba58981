package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"precipitation-platform/internal/services"
	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

// ReferenceHandler handles zones, sites and lookup table endpoints
type ReferenceHandler struct {
	responder
	reference *services.ReferenceService
}

// NewReferenceHandler creates a new reference data handler
func NewReferenceHandler(reference *services.ReferenceService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ReferenceHandler {
	return &ReferenceHandler{
		responder: responder{logger: logger, metrics: metricsCollector},
		reference: reference,
	}
}

// listHandler serves the result of list as a JSON array
func listHandler[T any](h responder, endpoint string, list func(context.Context) ([]T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := list(r.Context())
		if err != nil {
			h.sendError(w, r, endpoint, err)
			return
		}
		h.sendJSON(w, items, http.StatusOK)
	}
}

// createHandler decodes a Req body, passes it to create and answers 201
func createHandler[Req, T any](h responder, endpoint string, create func(context.Context, Req) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := decodeJSON(r, &req); err != nil {
			h.sendError(w, r, endpoint, err)
			return
		}
		created, err := create(r.Context(), req)
		if err != nil {
			h.sendError(w, r, endpoint, err)
			return
		}
		h.sendJSON(w, created, http.StatusCreated)
	}
}

// getHandler looks up the {id} path variable with get
func getHandler[T any](h responder, endpoint string, get func(context.Context, int64) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			h.sendError(w, r, endpoint, err)
			return
		}
		item, err := get(r.Context(), id)
		if err != nil {
			h.sendError(w, r, endpoint, err)
			return
		}
		h.sendJSON(w, item, http.StatusOK)
	}
}

// GetZoneByLocality handles GET /api/zones/locality/{locality}
func (h *ReferenceHandler) GetZoneByLocality(w http.ResponseWriter, r *http.Request) {
	zone, err := h.reference.GetZoneByLocality(r.Context(), mux.Vars(r)["locality"])
	if err != nil {
		h.sendError(w, r, "/api/zones/locality/{locality}", err)
		return
	}
	h.sendJSON(w, zone, http.StatusOK)
}

// DeleteZone handles DELETE /api/zones/{id}; sites and their reports go with it
func (h *ReferenceHandler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.sendError(w, r, "/api/zones/{id}", err)
		return
	}
	if err := h.reference.DeleteZone(r.Context(), id); err != nil {
		h.sendError(w, r, "/api/zones/{id}", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSites handles GET /api/sites with an optional zone_id filter
func (h *ReferenceHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	zoneID, err := queryID(r, "zone_id")
	if err != nil {
		h.sendError(w, r, "/api/sites", err)
		return
	}
	sites, err := h.reference.ListSites(r.Context(), zoneID)
	if err != nil {
		h.sendError(w, r, "/api/sites", err)
		return
	}
	h.sendJSON(w, sites, http.StatusOK)
}

// RegisterRoutes registers all reference data API routes
func (h *ReferenceHandler) RegisterRoutes(router *mux.Router) {
	s := h.reference

	router.HandleFunc("/api/zones", listHandler(h.responder, "/api/zones", s.ListZones)).Methods("GET")
	router.HandleFunc("/api/zones", createHandler(h.responder, "/api/zones", s.CreateZone)).Methods("POST")
	router.HandleFunc("/api/zones/sites", listHandler(h.responder, "/api/zones/sites", s.ListZonesWithSites)).Methods("GET")
	router.HandleFunc("/api/zones/locality/{locality}", h.GetZoneByLocality).Methods("GET")
	router.HandleFunc("/api/zones/{id:[0-9]+}", getHandler(h.responder, "/api/zones/{id}", s.GetZone)).Methods("GET")
	router.HandleFunc("/api/zones/{id:[0-9]+}", h.DeleteZone).Methods("DELETE")

	router.HandleFunc("/api/sites", h.ListSites).Methods("GET")
	router.HandleFunc("/api/sites", createHandler(h.responder, "/api/sites", s.RegisterSite)).Methods("POST")
	router.HandleFunc("/api/sites/{id:[0-9]+}", getHandler(h.responder, "/api/sites/{id}", s.GetSite)).Methods("GET")

	router.HandleFunc("/api/precipitations", listHandler(h.responder, "/api/precipitations", s.ListPrecipitationKinds)).Methods("GET")
	router.HandleFunc("/api/precipitations", createHandler(h.responder, "/api/precipitations", s.CreatePrecipitationKind)).Methods("POST")
	router.HandleFunc("/api/units", listHandler(h.responder, "/api/units", s.ListUnits)).Methods("GET")
	router.HandleFunc("/api/units", createHandler(h.responder, "/api/units", s.CreateUnit)).Methods("POST")
	router.HandleFunc("/api/instruments", listHandler(h.responder, "/api/instruments", s.ListInstruments)).Methods("GET")
	router.HandleFunc("/api/instruments", createHandler(h.responder, "/api/instruments", s.CreateInstrument)).Methods("POST")
	router.HandleFunc("/api/samples", listHandler(h.responder, "/api/samples", s.ListSamples)).Methods("GET")
	router.HandleFunc("/api/samples", createHandler(h.responder, "/api/samples", s.CreateSample)).Methods("POST")
}

