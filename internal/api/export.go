package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/askcsv/askcsv/internal/export"
)

type exportRequest struct {
	SQL      string `json:"sql"`
	RowLimit int    `json:"row_limit"`
}

// handleExport runs a statement and streams the result as a parquet file.
// Unlike /v1/query, a failed statement is a real HTTP error here: there is
// no file to download.
func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Executor == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query executor is not configured", false, nil)
		return
	}

	var request exportRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	result := deps.Executor.Execute(r.Context(), request.SQL, request.RowLimit)
	recordHistory(r.Context(), deps, "", result)
	if !result.Executed {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_FAILED", result.Error, false, map[string]any{"kind": result.Kind})
		return
	}

	data, err := export.EncodeResult(result.Fields, result.Rows)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to encode parquet result", true, map[string]any{"details": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", `attachment; filename="result.parquet"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
