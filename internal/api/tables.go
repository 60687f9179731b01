package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/askcsv/askcsv/internal/catalogfs"
)

type tableEntry struct {
	Name string `json:"name"`
	File string `json:"file"`
}

func handleListTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CATALOG_NOT_CONFIGURED", "catalog is not configured", false, nil)
		return
	}
	tables, err := deps.Catalog.ListTables()
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "CATALOG_ERROR", "failed to list tables", true, map[string]any{"details": err.Error()})
		return
	}
	entries := make([]tableEntry, 0, len(tables))
	for _, table := range tables {
		entries = append(entries, tableEntry{Name: table.Name, File: table.File})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": entries})
}

func handlePreviewTable(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Catalog == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CATALOG_NOT_CONFIGURED", "catalog is not configured", false, nil)
		return
	}
	table := strings.TrimSpace(r.PathValue("table"))
	if table == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "TABLE_REQUIRED", "table name is required", false, nil)
		return
	}

	limit := deps.PreviewRows
	if limit <= 0 {
		limit = 10
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(r.Context(), w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a positive integer", false, nil)
			return
		}
		limit = parsed
	}

	preview, err := deps.Catalog.PreviewTable(table, limit)
	if err != nil {
		if errors.Is(err, catalogfs.ErrTableNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", err.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "PREVIEW_FAILED", "failed to preview table", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":   preview.Table,
		"columns": preview.Columns,
		"rows":    preview.Rows,
	})
}
