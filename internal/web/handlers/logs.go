package handlers

import (
	"net/http"
	"strconv"

	"facegreeter/internal/store"
)

// LogsHandler serves the activity log.
type LogsHandler struct {
	store store.Store
}

func NewLogsHandler(st store.Store) *LogsHandler {
	return &LogsHandler{store: st}
}

// List returns the most recent activity log entries, newest first.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := store.MaxLogEntries
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	entries, err := h.store.Logs().List(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not list log entries")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"logs": entries, "count": len(entries)})
}
