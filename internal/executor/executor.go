// Package executor turns a raw, possibly LLM-authored statement into a
// sanitized query, runs it against the store, and translates engine
// failures into stable, hint-carrying error kinds.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/askcsv/askcsv/internal/observability"
	"github.com/askcsv/askcsv/internal/sqlsafe"
	"github.com/askcsv/askcsv/internal/store"
)

// Error kinds reported in Result.Kind. Stable values; clients branch on
// them.
const (
	KindNoDataDirectory   = "no-data-directory"
	KindStatementRejected = "statement-rejected"
	KindTableNotFound     = "table-not-found"
	KindColumnNotFound    = "column-not-found"
	KindSyntaxError       = "syntax-error"
	KindEngineError       = "engine-error"
)

const quotingHint = `If a table or column name contains unusual characters, wrap it in double quotes, for example "order id".`

// Result is the complete outcome of one Execute call. Executed is false
// whenever Error is set; SQL carries the sanitized statement when one was
// produced.
type Result struct {
	Executed bool
	SQL      string
	Fields   []string
	Rows     []map[string]any
	Error    string
	Kind     string
	Duration time.Duration
}

type Executor struct {
	Store  *store.Store
	Logger *slog.Logger
}

func New(s *store.Store, logger *slog.Logger) *Executor {
	return &Executor{Store: s, Logger: logger}
}

// Execute sanitizes and runs rawStatement. It never returns a Go error;
// every failure mode is folded into the Result so callers can hand it to a
// client verbatim.
func (e *Executor) Execute(ctx context.Context, rawStatement string, limit int) Result {
	start := time.Now()

	if _, err := os.Stat(e.Store.DataDir()); err != nil {
		result := Result{
			Error: fmt.Sprintf("data directory %q is not available; no tables are loaded", e.Store.DataDir()),
			Kind:  KindNoDataDirectory,
		}
		return e.finish(ctx, result, start)
	}

	sanitized, err := sqlsafe.Sanitize(rawStatement, limit)
	if err != nil {
		result := Result{
			Error: err.Error(),
			Kind:  KindStatementRejected,
		}
		return e.finish(ctx, result, start)
	}

	fields, rows, err := e.Store.Query(ctx, sanitized)
	if err != nil {
		kind, message := e.classify(ctx, err)
		result := Result{
			SQL:   sanitized,
			Error: message,
			Kind:  kind,
		}
		return e.finish(ctx, result, start)
	}

	if len(rows) == 0 {
		fields = []string{}
		rows = []map[string]any{}
	}
	for _, row := range rows {
		coerceRow(row)
	}
	result := Result{
		Executed: true,
		SQL:      sanitized,
		Fields:   fields,
		Rows:     rows,
	}
	return e.finish(ctx, result, start)
}

func (e *Executor) finish(ctx context.Context, result Result, start time.Time) Result {
	result.Duration = time.Since(start)
	kind := result.Kind
	if result.Executed {
		kind = "ok"
	}
	observability.ObserveQuery(kind, len(result.Rows), result.Duration)
	if e.Logger != nil {
		if result.Executed {
			e.Logger.InfoContext(ctx, "query executed",
				slog.Int("rows", len(result.Rows)),
				slog.Duration("duration", result.Duration),
			)
		} else {
			e.Logger.WarnContext(ctx, "query failed",
				slog.String("kind", result.Kind),
				slog.String("error", result.Error),
			)
		}
	}
	return result
}

// classify maps an engine error onto a kind and appends the hint a query
// author can act on. The engine reports failures as prose, so matching is
// by substring.
func (e *Executor) classify(ctx context.Context, err error) (string, string) {
	message := err.Error()
	lowered := strings.ToLower(message)

	switch {
	case strings.Contains(lowered, "does not exist") && strings.Contains(lowered, "table"),
		strings.Contains(lowered, "catalog error") && strings.Contains(lowered, "table with name"):
		return KindTableNotFound, message + " " + e.knownTablesHint(ctx)
	case strings.Contains(lowered, "referenced column"),
		strings.Contains(lowered, "does not have a column"),
		strings.Contains(lowered, "not found in from clause"):
		hint := `Hint: check the column name against the table preview; a commonly guessed name is product_category, but the products table calls it product_category_name. ` + quotingHint
		return KindColumnNotFound, message + " " + hint
	case strings.Contains(lowered, "parser error"),
		strings.Contains(lowered, "syntax error"):
		return KindSyntaxError, message + " Hint: " + quotingHint
	default:
		return KindEngineError, message
	}
}

func (e *Executor) knownTablesHint(ctx context.Context) string {
	names, err := e.Store.TableNames(ctx)
	if err != nil || len(names) == 0 {
		return "No tables are currently loaded."
	}
	return "Known tables: " + strings.Join(names, ", ") + "."
}

// coerceRow rewrites string cells that fully parse as finite numbers into
// float64 so JSON clients receive numbers for numeric-looking text columns.
func coerceRow(row map[string]any) {
	for key, value := range row {
		text, ok := value.(string)
		if !ok || text == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(text, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			continue
		}
		row[key] = parsed
	}
}
