package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/barber-pos/internal/adapter/metrics"
)

// responseWriter is a wrapper that captures the HTTP status code for logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestInfo is filled in by inner middleware so the access log can report
// who made the request.
type requestInfo struct {
	businessID string
}

type requestInfoKey struct{}

func noteTenant(ctx context.Context, businessID string) {
	if ri, ok := ctx.Value(requestInfoKey{}).(*requestInfo); ok {
		ri.businessID = businessID
	}
}

// Logging is a middleware factory that logs HTTP requests and counts them by
// route pattern. m may be nil.
func Logging(logger *slog.Logger, m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ri := &requestInfo{}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoKey{}, ri))
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			duration := time.Since(start)

			// The pattern keeps ids out of the label set.
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if m != nil {
				m.RequestsTotal.WithLabelValues(route, strconv.Itoa(rw.statusCode)).Inc()
			}

			logger.Info("handled request",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"remote_addr", r.RemoteAddr,
				"status", rw.statusCode,
				"business_id", ri.businessID,
				"duration_ms", duration.Milliseconds(),
			)
		})
	}
}
