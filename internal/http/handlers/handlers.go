// Package handlers serves the read-only ops endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/preston-bernstein/game-ingest-service/internal/app/games"
	"github.com/preston-bernstein/game-ingest-service/internal/fetcher"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
	"github.com/preston-bernstein/game-ingest-service/internal/poller"
	"github.com/preston-bernstein/game-ingest-service/internal/schedule"
	"github.com/preston-bernstein/game-ingest-service/internal/timeutil"
)

// PlanSource serves day plans by date.
type PlanSource interface {
	Plan(date string) (schedule.DayPlan, bool)
}

// GameReader serves canonical game records.
type GameReader interface {
	GamesOn(ctx context.Context, date string) ([]games.Game, error)
	Detail(ctx context.Context, gameID string) (games.Detail, bool, error)
}

// Pinger checks a backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the read-only views the handlers expose. Any may be nil.
type Deps struct {
	PollerStatus  func() poller.Status
	FetcherStatus func() fetcher.Status
	Tasks         func() []schedule.LiveTask
	Plans         PlanSource
	Games         GameReader
	Store         Pinger
	Location      *time.Location
	Logger        *slog.Logger
}

// Handler wires ops routes to service state.
type Handler struct {
	deps Deps
	now  func() time.Time
}

// NewHandler constructs a Handler with defaults.
func NewHandler(deps Deps) *Handler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &Handler{deps: deps, now: time.Now}
}

// StatusResponse is the /status payload.
type StatusResponse struct {
	Poller  *poller.Status  `json:"poller,omitempty"`
	Fetcher *fetcher.Status `json:"fetcher,omitempty"`
	Queue   QueueStatus     `json:"queue"`
}

// QueueStatus summarizes the live queue.
type QueueStatus struct {
	Size  int                 `json:"size"`
	Tasks []schedule.LiveTask `json:"tasks"`
}

// Health reports the service health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := r.Context().Err(); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "shutting down", h.deps.Logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.deps.Logger)
}

// Ready reports readiness: the store answers and the poller is not failing repeatedly.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store != nil {
		if err := h.deps.Store.Ping(r.Context()); err != nil {
			logging.Warn(logging.FromContext(r.Context(), h.deps.Logger), "store ping failed", "err", err)
			writeError(w, r, http.StatusServiceUnavailable, "store unavailable", h.deps.Logger)
			return
		}
	}
	if h.deps.PollerStatus != nil {
		status := h.deps.PollerStatus()
		if !status.IsReady() {
			msg := status.LastError
			if msg == "" {
				msg = "not ready"
			}
			writeError(w, r, http.StatusServiceUnavailable, msg, h.deps.Logger)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"}, h.deps.Logger)
}

// Status reports the poller, fetcher and live queue.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Queue: QueueStatus{Tasks: []schedule.LiveTask{}}}
	if h.deps.PollerStatus != nil {
		s := h.deps.PollerStatus()
		resp.Poller = &s
	}
	if h.deps.FetcherStatus != nil {
		s := h.deps.FetcherStatus()
		resp.Fetcher = &s
	}
	if h.deps.Tasks != nil {
		resp.Queue.Tasks = h.deps.Tasks()
		resp.Queue.Size = len(resp.Queue.Tasks)
	}
	writeJSON(w, http.StatusOK, resp, h.deps.Logger)
}

// Plan returns the day plan for {date}; "today" resolves in the service calendar.
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	date, ok := h.resolveDate(w, r)
	if !ok {
		return
	}
	if h.deps.Plans == nil {
		writeError(w, r, http.StatusServiceUnavailable, "planner not configured", h.deps.Logger)
		return
	}
	plan, ok := h.deps.Plans.Plan(date)
	if !ok {
		writeError(w, r, http.StatusNotFound, "plan not found", h.deps.Logger)
		return
	}
	writeJSON(w, http.StatusOK, plan, h.deps.Logger)
}

// GamesOn lists the canonical games scheduled on {date}.
func (h *Handler) GamesOn(w http.ResponseWriter, r *http.Request) {
	date, ok := h.resolveDate(w, r)
	if !ok {
		return
	}
	if h.deps.Games == nil {
		writeError(w, r, http.StatusServiceUnavailable, "store not configured", h.deps.Logger)
		return
	}
	list, err := h.deps.Games.GamesOn(r.Context(), date)
	if err != nil {
		logging.Error(logging.FromContext(r.Context(), h.deps.Logger), "list games failed", err, logging.FieldDate, date)
		writeError(w, r, http.StatusInternalServerError, "failed to load games", h.deps.Logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "games": list}, h.deps.Logger)
}

// Game returns one game with its aggregate and sub-events.
func (h *Handler) Game(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.deps.Games == nil {
		writeError(w, r, http.StatusServiceUnavailable, "store not configured", h.deps.Logger)
		return
	}
	detail, ok, err := h.deps.Games.Detail(r.Context(), id)
	if err != nil {
		logging.Error(logging.FromContext(r.Context(), h.deps.Logger), "load game failed", err, logging.FieldGameID, id)
		writeError(w, r, http.StatusInternalServerError, "failed to load game", h.deps.Logger)
		return
	}
	if !ok {
		writeError(w, r, http.StatusNotFound, "game not found", h.deps.Logger)
		return
	}
	writeJSON(w, http.StatusOK, detail, h.deps.Logger)
}

// resolveDate reads {date}, mapping "today" onto the service calendar.
func (h *Handler) resolveDate(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	if date == "today" {
		date = timeutil.FormatDate(h.now().In(h.deps.Location))
	}
	if _, err := timeutil.ParseDate(date); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid date format (expected YYYY-MM-DD)", h.deps.Logger)
		return "", false
	}
	return date, true
}
