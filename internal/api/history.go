package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

type historyEntry struct {
	ID         int64  `json:"id"`
	Question   string `json:"question,omitempty"`
	SQL        string `json:"sql"`
	Kind       string `json:"kind,omitempty"`
	RowCount   int    `json:"row_count"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

func handleHistory(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.History == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "HISTORY_NOT_CONFIGURED", "query history is not configured", false, nil)
		return
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	entries, err := deps.History.Recent(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "HISTORY_ERROR", "failed to list history entries", true, map[string]any{"details": err.Error()})
		return
	}

	payload := make([]historyEntry, 0, len(entries))
	for _, entry := range entries {
		payload = append(payload, historyEntry{
			ID:         entry.ID,
			Question:   entry.Question,
			SQL:        entry.SQL,
			Kind:       entry.Kind,
			RowCount:   entry.RowCount,
			DurationMS: entry.DurationMS,
			CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": payload})
}
