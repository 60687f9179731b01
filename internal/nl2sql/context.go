package nl2sql

import (
	"context"
	"fmt"

	"github.com/askcsv/askcsv/internal/store"
)

// BuildTableContext assembles the prompt context from the live store: every
// ingested table with its column order and up to sampleRows example rows.
func BuildTableContext(ctx context.Context, s *store.Store, sampleRows int) ([]TableContext, error) {
	if sampleRows < 0 {
		sampleRows = 0
	}
	names, err := s.TableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables for prompt context: %w", err)
	}

	tables := make([]TableContext, 0, len(names))
	for _, name := range names {
		columns, rows, err := s.Query(ctx, fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, name, sampleRows))
		if err != nil {
			return nil, fmt.Errorf("sample table %q: %w", name, err)
		}
		samples := make([][]any, 0, len(rows))
		for _, row := range rows {
			sample := make([]any, 0, len(columns))
			for _, column := range columns {
				sample = append(sample, row[column])
			}
			samples = append(samples, sample)
		}
		tables = append(tables, TableContext{
			TableName:  name,
			Columns:    columns,
			SampleRows: samples,
		})
	}
	return tables, nil
}
