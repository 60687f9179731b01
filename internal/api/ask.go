package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/askcsv/askcsv/internal/nl2sql"
	"github.com/askcsv/askcsv/internal/observability"
	"github.com/askcsv/askcsv/internal/sqlsafe"
)

type askRequest struct {
	Question string `json:"question"`
	RowLimit int    `json:"row_limit"`
}

type askResponse struct {
	queryResponse
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Model    string `json:"model,omitempty"`
	Provider string `json:"provider,omitempty"`
	Notice   string `json:"notice,omitempty"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil || deps.Executor == nil || deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "natural language translation is not configured", false, nil)
		return
	}

	var request askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	tables, err := nl2sql.BuildTableContext(r.Context(), deps.Store, deps.SchemaSampleRows)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_CONTEXT_FAILED", "failed to build schema context", true, map[string]any{"details": err.Error()})
		return
	}

	translated, err := deps.Translator.Translate(r.Context(), nl2sql.Request{
		Question: request.Question,
		Tables:   tables,
	})
	if err != nil {
		observability.ObserveTranslate("error")
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATION_FAILED", "translation request failed", true, map[string]any{"details": err.Error()})
		return
	}

	response := askResponse{
		Question: request.Question,
		Answer:   translated.Answer,
		Model:    translated.Model,
		Provider: translated.Provider,
	}

	statement, ok := sqlsafe.Extract(translated.Answer)
	if !ok {
		observability.ObserveTranslate("no_sql")
		response.queryResponse = queryResponse{
			Fields: []string{},
			Rows:   []map[string]any{},
			Stats:  map[string]any{"duration_ms": int64(0), "row_count": 0},
		}
		response.Notice = "the model answer did not contain a SQL statement"
		writeJSON(w, http.StatusOK, response)
		return
	}
	observability.ObserveTranslate("ok")

	result := deps.Executor.Execute(r.Context(), statement, request.RowLimit)
	recordHistory(r.Context(), deps, request.Question, result)
	response.queryResponse = toQueryResponse(result)
	writeJSON(w, http.StatusOK, response)
}
