package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"precipitation-platform/pkg/logging"
	"precipitation-platform/pkg/metrics"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing an inbound X-Request-ID
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// CORS allows browser clients from origin and answers preflight requests
func CORS(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader+", X-Unit-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Timeout bounds the context of every request. Store calls observe the
// deadline and roll back when it passes.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Instrument records request count and latency per route template and logs
// one line per request
func Instrument(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					endpoint = tmpl
				}
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			timer := metricsCollector.NewTimer(metricsCollector.APIRequestDuration.WithLabelValues(endpoint))
			next.ServeHTTP(rec, r)
			duration := timer.ObserveDuration()

			metricsCollector.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(rec.status))
			logger.Info(r.Context(), "[API_REQUEST] Request served", logging.Fields{
				"endpoint":    endpoint,
				"method":      r.Method,
				"status":      rec.status,
				"duration_ms": duration.Milliseconds(),
			})
		})
	}
}
