package http

import (
	"log/slog"
	nethttp "net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/preston-bernstein/game-ingest-service/internal/http/handlers"
	"github.com/preston-bernstein/game-ingest-service/internal/http/middleware"
	"github.com/preston-bernstein/game-ingest-service/internal/metrics"
)

// NewRouter registers the ops routes. metricsHandler is mounted at
// /metrics when non-nil.
func NewRouter(handler *handlers.Handler, logger *slog.Logger, recorder *metrics.Recorder, metricsHandler nethttp.Handler) nethttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger, recorder))

	r.Get("/health", handler.Health)
	r.Get("/ready", handler.Ready)
	r.Get("/status", handler.Status)
	r.Get("/plans/{date}", handler.Plan)
	r.Get("/dates/{date}/games", handler.GamesOn)
	r.Get("/games/{id}", handler.Game)
	if metricsHandler != nil {
		r.Method(nethttp.MethodGet, "/metrics", metricsHandler)
	}
	return r
}
