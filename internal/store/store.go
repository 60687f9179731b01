// Package store wraps the embedded DuckDB engine behind the small surface
// the ingestor and executor need. Every table is created with generic text
// columns; typed interpretation happens at read time in the executor.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
)

type Store struct {
	db      *sql.DB
	dataDir string
}

// Open creates the process-wide in-memory store. One instance is opened at
// startup and injected into the ingestor and executor.
func Open(dataDir string) (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Store{db: db, dataDir: dataDir}, nil
}

// NewWithDB wraps an existing handle. Used by tests.
func NewWithDB(db *sql.DB, dataDir string) *Store {
	return &Store{db: db, dataDir: dataDir}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping store: %w", err)
	}
	return nil
}

// CreateTableIfNotExists declares every column as VARCHAR regardless of CSV
// content. Numeric and date semantics are applied only at read time.
func (s *Store) CreateTableIfNotExists(ctx context.Context, name string, columns []string) error {
	if len(columns) == 0 {
		return fmt.Errorf("table %q requires at least one column", name)
	}
	decls := make([]string, 0, len(columns))
	for _, column := range columns {
		decls = append(decls, quoteIdent(column)+" VARCHAR")
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(name), strings.Join(decls, ", "))
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %q: %w", name, err)
	}
	return nil
}

func (s *Store) RowCount(ctx context.Context, name string) (int64, error) {
	var count int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(name))
	if err := s.db.QueryRowContext(ctx, countSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows in %q: %w", name, err)
	}
	return count, nil
}

// InsertRows bulk-inserts positionally. Values must already be strings or
// nil; nil maps to SQL NULL.
func (s *Store) InsertRows(ctx context.Context, name string, columns []string, rows [][]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	quoted := make([]string, 0, len(columns))
	for _, column := range columns {
		quoted = append(quoted, quoteIdent(column))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(name), strings.Join(quoted, ", "), placeholders)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert into %q: %w", name, err)
	}
	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("prepare insert into %q: %w", name, err)
	}
	inserted := 0
	for _, row := range rows {
		if len(row) != len(columns) {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert into %q: row has %d values, want %d", name, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert row into %q: %w", name, err)
		}
		inserted++
	}
	if err := stmt.Close(); err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("close insert statement for %q: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert into %q: %w", name, err)
	}
	return inserted, nil
}

// Query runs a single read statement and materializes the full result.
// Bracket-quoted identifiers are rewritten to the engine's double-quote form
// before execution so `[orders]` round-trips cleanly.
func (s *Store) Query(ctx context.Context, sqlText string) ([]string, []map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, normalizeBrackets(sqlText))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("query columns: %w", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, fmt.Errorf("scan row: %w", err)
		}
		record := make(map[string]any, len(columns))
		for i, column := range columns {
			record[column] = normalizeValue(values[i])
		}
		results = append(results, record)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, results, nil
}

func (s *Store) TableNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT table_name FROM information_schema.tables WHERE table_schema = 'main' ORDER BY table_name")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table names: %w", err)
	}
	return names, nil
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	default:
		return typed
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// normalizeBrackets rewrites [ident] to "ident" outside of string literals
// and already-quoted identifiers.
func normalizeBrackets(sqlText string) string {
	var out strings.Builder
	out.Grow(len(sqlText))
	inString := false
	inQuotedIdent := false
	for i := 0; i < len(sqlText); i++ {
		c := sqlText[i]
		switch {
		case inString:
			out.WriteByte(c)
			if c == '\'' {
				inString = false
			}
		case inQuotedIdent:
			out.WriteByte(c)
			if c == '"' {
				inQuotedIdent = false
			}
		case c == '\'':
			inString = true
			out.WriteByte(c)
		case c == '"':
			inQuotedIdent = true
			out.WriteByte(c)
		case c == '[':
			end := strings.IndexByte(sqlText[i+1:], ']')
			if end < 0 {
				out.WriteByte(c)
				continue
			}
			inner := sqlText[i+1 : i+1+end]
			out.WriteByte('"')
			out.WriteString(strings.ReplaceAll(inner, `"`, `""`))
			out.WriteByte('"')
			i += end + 1
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}
