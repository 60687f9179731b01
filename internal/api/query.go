package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/askcsv/askcsv/internal/executor"
	"github.com/askcsv/askcsv/internal/history"
)

type queryRequest struct {
	SQL      string `json:"sql"`
	RowLimit int    `json:"row_limit"`
}

// queryResponse is always delivered with HTTP 200; failures ride inside the
// body with executed=false so chat-style clients can surface them verbatim.
type queryResponse struct {
	Executed bool             `json:"executed"`
	SQL      string           `json:"sql,omitempty"`
	Fields   []string         `json:"fields"`
	Rows     []map[string]any `json:"rows"`
	Error    string           `json:"error,omitempty"`
	Kind     string           `json:"kind,omitempty"`
	Stats    map[string]any   `json:"stats"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Executor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query executor is not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	result := deps.Executor.Execute(r.Context(), request.SQL, request.RowLimit)
	recordHistory(r.Context(), deps, "", result)
	writeJSON(w, http.StatusOK, toQueryResponse(result))
}

func toQueryResponse(result executor.Result) queryResponse {
	fields := result.Fields
	if fields == nil {
		fields = []string{}
	}
	rows := result.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	return queryResponse{
		Executed: result.Executed,
		SQL:      result.SQL,
		Fields:   fields,
		Rows:     rows,
		Error:    result.Error,
		Kind:     result.Kind,
		Stats: map[string]any{
			"duration_ms": result.Duration.Milliseconds(),
			"row_count":   len(rows),
		},
	}
}

func recordHistory(ctx context.Context, deps Dependencies, question string, result executor.Result) {
	if deps.History == nil {
		return
	}
	entry := history.Entry{
		Question:   question,
		SQL:        result.SQL,
		Kind:       result.Kind,
		RowCount:   len(result.Rows),
		DurationMS: result.Duration.Milliseconds(),
	}
	if _, err := deps.History.Record(ctx, entry); err != nil && deps.Logger != nil {
		deps.Logger.WarnContext(ctx, "record history entry failed", slog.Any("error", err))
	}
}
