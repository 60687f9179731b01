package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/askcsv/askcsv/internal/auth"
	"github.com/askcsv/askcsv/internal/catalogfs"
	"github.com/askcsv/askcsv/internal/config"
	"github.com/askcsv/askcsv/internal/executor"
	"github.com/askcsv/askcsv/internal/ingest"
	"github.com/askcsv/askcsv/internal/nl2sql"
	"github.com/askcsv/askcsv/internal/store"
)

type stubTranslator struct {
	answer string
	err    error
}

func (s *stubTranslator) Translate(_ context.Context, _ nl2sql.Request) (nl2sql.Result, error) {
	if s.err != nil {
		return nl2sql.Result{}, s.err
	}
	return nl2sql.Result{Answer: s.answer, Provider: "stub", Model: "stub-model"}, nil
}

func testConfig(t *testing.T, dataDir string) config.Config {
	t.Helper()
	cfg, err := config.Load("askcsv-api", func(key string) (string, bool) {
		switch key {
		case "ASKCSV_PROFILE":
			return "test", true
		case "ASKCSV_DATA_DIR":
			return dataDir, true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return cfg
}

func newTestDeps(t *testing.T) (Dependencies, config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "orders.csv"), []byte("order_id,amount\nA1,10.5\nA2,bad\n"), 0o644); err != nil {
		t.Fatalf("write orders.csv: %v", err)
	}

	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	loader := &ingest.Loader{Store: s, Logger: logger}
	loader.Load(context.Background())

	deps := Dependencies{
		Logger:           logger,
		Readiness:        CheckStore(s),
		Catalog:          catalogfs.New(dir),
		Executor:         executor.New(s, logger),
		Store:            s,
		PreviewRows:      10,
		SchemaSampleRows: 3,
	}
	return deps, testConfig(t, dir), dir
}

func decodeBody(t *testing.T, body *bytes.Buffer, dst any) {
	t.Helper()
	if err := json.Unmarshal(body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", body.String(), err)
	}
}

func TestHealthEndpoint(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var payload map[string]any
	decodeBody(t, rr.Body, &payload)
	if payload["service"] != "askcsv-api" {
		t.Fatalf("service = %v", payload["service"])
	}
}

func TestReadyEndpoint(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestListTablesEndpoint(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var payload struct {
		Tables []tableEntry `json:"tables"`
	}
	decodeBody(t, rr.Body, &payload)
	if len(payload.Tables) != 1 || payload.Tables[0].Name != "orders" {
		t.Fatalf("tables = %+v", payload.Tables)
	}
}

func TestPreviewEndpoint(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables/orders/preview?limit=1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Table   string     `json:"table"`
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}
	decodeBody(t, rr.Body, &payload)
	if payload.Table != "orders" || len(payload.Rows) != 1 {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.Rows[0][1] != "10.5" {
		t.Fatalf("preview rows = %+v, want verbatim strings", payload.Rows)
	}
}

func TestPreviewEndpointUnknownTable(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables/missing/preview", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestQueryEndpointSuccess(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	body := strings.NewReader(`{"sql":"SELECT * FROM [orders] ORDER BY order_id LIMIT 10"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var payload queryResponse
	decodeBody(t, rr.Body, &payload)
	if !payload.Executed {
		t.Fatalf("executed = false, error = %q", payload.Error)
	}
	if len(payload.Rows) != 2 {
		t.Fatalf("rows = %d", len(payload.Rows))
	}
	if got, ok := payload.Rows[0]["amount"].(float64); !ok || got != 10.5 {
		t.Fatalf("amount = %#v, want coerced number", payload.Rows[0]["amount"])
	}
}

func TestQueryEndpointFailureIsStill200(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	body := strings.NewReader(`{"sql":"DROP TABLE orders"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, failures must still answer 200", rr.Code)
	}
	var payload queryResponse
	decodeBody(t, rr.Body, &payload)
	if payload.Executed {
		t.Fatal("executed = true for rejected statement")
	}
	if payload.Kind != executor.KindStatementRejected {
		t.Fatalf("kind = %q", payload.Kind)
	}
	if payload.Error == "" {
		t.Fatal("error message missing")
	}
}

func TestQueryEndpointRequiresSQL(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAskEndpointExecutesExtractedStatement(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	deps.Translator = &stubTranslator{answer: "Sure, here you go.\n\nSQL: SELECT COUNT(*) AS n FROM orders\n"}
	handler := NewHandler(cfg, deps)

	body := strings.NewReader(`{"question":"how many orders are there"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var payload askResponse
	decodeBody(t, rr.Body, &payload)
	if !payload.Executed {
		t.Fatalf("executed = false, error = %q", payload.Error)
	}
	if len(payload.Rows) != 1 {
		t.Fatalf("rows = %d", len(payload.Rows))
	}
	if got, ok := payload.Rows[0]["n"].(float64); !ok || got != 2 {
		t.Fatalf("n = %#v", payload.Rows[0]["n"])
	}
	if !strings.Contains(payload.Answer, "SQL:") {
		t.Fatalf("answer = %q, want raw model text", payload.Answer)
	}
}

func TestAskEndpointWithoutStatementIsDegraded200(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	deps.Translator = &stubTranslator{answer: "I cannot build a query for that question."}
	handler := NewHandler(cfg, deps)

	body := strings.NewReader(`{"question":"tell me a joke"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var payload askResponse
	decodeBody(t, rr.Body, &payload)
	if payload.Executed {
		t.Fatal("executed = true without a statement")
	}
	if payload.Notice == "" {
		t.Fatal("notice missing for degraded answer")
	}
}

func TestAskEndpointNotConfigured(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	body := strings.NewReader(`{"question":"how many orders"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/ask", body))

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestExportEndpointReturnsParquet(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	body := strings.NewReader(`{"sql":"SELECT * FROM orders LIMIT 5"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/export", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/vnd.apache.parquet" {
		t.Fatalf("Content-Type = %q", got)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("PAR1")) {
		t.Fatal("body is not a parquet file")
	}
}

func TestExportEndpointFailedQueryIsHTTPError(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	body := strings.NewReader(`{"sql":"DROP TABLE orders"}`)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/export", body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestHistoryEndpointNotConfigured(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	handler := NewHandler(cfg, deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/history", nil))

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAuthRequiredProtectsQueryEndpoints(t *testing.T) {
	deps, cfg, _ := newTestDeps(t)
	cfg.Auth.Required = true
	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}
	deps.AuthMiddleware = auth.Middleware(deps.Logger, validator)
	handler := NewHandler(cfg, deps)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/tables", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want unauthorized without key", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/tables", nil)
	req.Header.Set("X-API-Key", "k1")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want authorized with key", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, health must stay open", rr.Code)
	}
}
