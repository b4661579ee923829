package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/preston-bernstein/game-ingest-service/internal/http/middleware"
	"github.com/preston-bernstein/game-ingest-service/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Error(logger, "failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, logger *slog.Logger) {
	reqID := middleware.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = r.Header.Get("X-Request-ID")
	}
	body := map[string]string{"error": message}
	if reqID != "" {
		body["requestId"] = reqID
	}
	writeJSON(w, status, body, logger)
}
