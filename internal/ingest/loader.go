// Package ingest loads every CSV file in the data directory into the
// tabular store. One table per file, all columns text, loaded once.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/askcsv/askcsv/internal/observability"
	"github.com/askcsv/askcsv/internal/store"
)

type Loader struct {
	Store  *store.Store
	Logger *slog.Logger
}

// Summary reports what a Load pass did. Loads never fail the caller; a
// malformed file is logged and skipped so the rest of the directory still
// loads.
type Summary struct {
	Files    int
	Loaded   int
	Skipped  int
	Rows     int
	Conflict int
}

// Load ingests the store's data directory. Idempotent: a table that already
// holds rows is left untouched. Not safe for concurrent use; call once at
// startup.
func (l *Loader) Load(ctx context.Context) Summary {
	logger := l.logger()
	dir := l.Store.DataDir()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Warn("data directory missing, creating empty", slog.String("dir", dir))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error("create data directory failed", slog.String("dir", dir), slog.Any("error", err))
		}
		return Summary{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("read data directory failed", slog.String("dir", dir), slog.Any("error", err))
		return Summary{}
	}

	summary := Summary{}
	claimed := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		summary.Files++
		table := SanitizeName(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())))
		if origin, ok := claimed[table]; ok {
			// Two files collapsing to one sanitized name would silently
			// share a table; flag it and keep the first file only.
			logger.Warn("table name conflict, skipping file",
				slog.String("table", table),
				slog.String("file", entry.Name()),
				slog.String("claimed_by", origin),
			)
			observability.ObserveIngestFile("conflict", 0)
			summary.Conflict++
			continue
		}
		claimed[table] = entry.Name()

		rows, err := l.loadFile(ctx, filepath.Join(dir, entry.Name()), table)
		if err != nil {
			logger.Warn("skipping csv file", slog.String("file", entry.Name()), slog.Any("error", err))
			observability.ObserveIngestFile("error", 0)
			summary.Skipped++
			continue
		}
		if rows > 0 {
			logger.Info("loaded csv file",
				slog.String("file", entry.Name()),
				slog.String("table", table),
				slog.Int("rows", rows),
			)
			observability.ObserveIngestFile("loaded", rows)
			summary.Loaded++
			summary.Rows += rows
		} else {
			observability.ObserveIngestFile("unchanged", 0)
			summary.Skipped++
		}
	}
	return summary
}

// loadFile returns the number of inserted rows; zero means the file was
// empty or the table already held data.
func (l *Loader) loadFile(ctx context.Context, path, table string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	records := make([][]string, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if isBlank(record) {
			continue
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return 0, nil
	}

	columns := make([]string, 0, len(header))
	for _, name := range header {
		columns = append(columns, SanitizeName(name))
	}
	derived := derivedColumnRules[table]
	for _, column := range derived {
		columns = append(columns, column.name)
	}

	if err := l.Store.CreateTableIfNotExists(ctx, table, columns); err != nil {
		return 0, err
	}
	count, err := l.Store.RowCount(ctx, table)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	rows := make([][]any, 0, len(records))
	for _, record := range records {
		row := make([]any, 0, len(columns))
		source := make(map[string]string, len(header))
		for i := range header {
			value := ""
			if i < len(record) {
				value = record[i]
			}
			source[header[i]] = value
			if value == "" {
				row = append(row, nil)
			} else {
				row = append(row, value)
			}
		}
		for _, column := range derived {
			row = append(row, column.derive(source))
		}
		rows = append(rows, row)
	}
	return l.Store.InsertRows(ctx, table, columns, rows)
}

func (l *Loader) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// SanitizeName maps arbitrary file and header names onto engine-safe
// identifiers: every rune outside [A-Za-z0-9_] becomes an underscore.
func SanitizeName(name string) string {
	var out strings.Builder
	out.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out.WriteRune(r)
		default:
			out.WriteByte('_')
		}
	}
	return out.String()
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
