package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/viant/chemflow/internal/logging"
	"github.com/viant/chemflow/tracing"
)

// Logging logs every request and puts the logger into the request context
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			requestLogger := logger.With("request_id", middleware.GetReqID(r.Context()))
			next.ServeHTTP(ww, r.WithContext(logging.WithLogger(r.Context(), requestLogger)))
			requestLogger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
			)
		})
	}
}

// Tracing starts a server span per request named after the matched route
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.StartSpan(r.Context(), "http.request", tracing.KindServer)
		defer span.End()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		attrs := map[string]string{"http.method": r.Method, "http.target": r.URL.Path}
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			attrs["http.route"] = rctx.RoutePattern()
		}
		span.WithAttributes(attrs)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		span.SetStatusFromHTTPCode(status)
	})
}
