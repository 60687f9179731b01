// Package catalogfs answers table listing and preview questions straight
// from the CSV files on disk. It never touches the store, so it is safe to
// serve before or without ingestion.
package catalogfs

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/askcsv/askcsv/internal/ingest"
)

// ErrTableNotFound is returned when no CSV file matches a requested table.
var ErrTableNotFound = errors.New("table not found")

type TableInfo struct {
	Name string
	File string
}

// Preview holds the verbatim head of a CSV file. Values are raw strings
// exactly as written in the file; no typing or null mapping is applied.
type Preview struct {
	Table   string
	Columns []string
	Rows    [][]string
}

type Catalog struct {
	dataDir string
}

func New(dataDir string) *Catalog {
	return &Catalog{dataDir: dataDir}
}

// ListTables scans the data directory for CSV files. A missing directory
// yields an empty catalog, not an error.
func (c *Catalog) ListTables() ([]TableInfo, error) {
	entries, err := os.ReadDir(c.dataDir)
	if errors.Is(err, os.ErrNotExist) {
		return []TableInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data directory %q: %w", c.dataDir, err)
	}

	tables := make([]TableInfo, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		tables = append(tables, TableInfo{
			Name: ingest.SanitizeName(strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))),
			File: entry.Name(),
		})
	}
	return tables, nil
}

// PreviewTable re-parses the raw CSV behind table and returns its header
// plus up to limit rows.
func (c *Catalog) PreviewTable(table string, limit int) (Preview, error) {
	if limit < 1 {
		limit = 1
	}

	tables, err := c.ListTables()
	if err != nil {
		return Preview{}, err
	}
	var fileName string
	for _, info := range tables {
		if info.Name == table {
			fileName = info.File
			break
		}
	}
	if fileName == "" {
		return Preview{}, fmt.Errorf("%w: %q", ErrTableNotFound, table)
	}

	file, err := os.Open(filepath.Join(c.dataDir, fileName))
	if err != nil {
		return Preview{}, fmt.Errorf("open %q: %w", fileName, err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return Preview{Table: table, Columns: []string{}, Rows: [][]string{}}, nil
	}
	if err != nil {
		return Preview{}, fmt.Errorf("read header of %q: %w", fileName, err)
	}

	rows := make([][]string, 0, limit)
	for len(rows) < limit {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Preview{}, fmt.Errorf("read %q: %w", fileName, err)
		}
		rows = append(rows, record)
	}
	return Preview{Table: table, Columns: header, Rows: rows}, nil
}
