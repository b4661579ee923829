package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/preston-bernstein/game-ingest-service/internal/http/requestutil"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
)

// Logging wraps handlers with request logging, request ID support, and metrics.
func Logging(baseLogger *slog.Logger, recorder *metrics.Recorder) func(http.Handler) http.Handler {
	if baseLogger == nil {
		baseLogger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := requestutil.SanitizeRequestID(r.Header.Get("X-Request-ID"))
			w.Header().Set("X-Request-ID", reqID)

			logger := baseLogger.With(
				slog.String(logging.FieldRequestID, reqID),
				slog.String(logging.FieldMethod, r.Method),
				slog.String(logging.FieldPath, r.URL.Path),
				slog.String("client_ip", requestutil.ClientIP(r)),
			)

			ctx := logging.WithLogger(r.Context(), logger)
			ctx = withRequestID(ctx, reqID)
			r = r.WithContext(ctx)
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			recorder.RecordHTTPRequest(r.Method, routePattern(r), ww.status, duration)

			logger.Info("request complete",
				slog.Int(logging.FieldStatusCode, ww.status),
				slog.Int64(logging.FieldDurationMS, duration.Milliseconds()),
			)
		})
	}
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

// routePattern reports the matched chi pattern so metrics do not fan out per date.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// RequestIDFromContext extracts the request ID stored by the logging middleware.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(requestIDKey{}).(string); ok {
		return val
	}
	return ""
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

type requestIDKey struct{}
