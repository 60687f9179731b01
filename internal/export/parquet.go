// Package export serializes query results to parquet for download. The
// schema is built per result: columns whose values all parse as numbers
// become optional doubles, everything else optional strings.
package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

// EncodeResult writes fields and rows as a single parquet file in memory.
// Rows are the executor's output: cells are float64, string, or nil.
func EncodeResult(fields []string, rows []map[string]any) ([]byte, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("result has no columns to export")
	}

	numeric := numericColumns(fields, rows)

	group := parquet.Group{}
	for _, field := range fields {
		if numeric[field] {
			group[field] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			group[field] = parquet.Optional(parquet.String())
		}
	}
	schema := parquet.NewSchema("result", group)

	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		record := make(map[string]any, len(fields))
		for _, field := range fields {
			value := row[field]
			if value == nil {
				continue
			}
			if numeric[field] {
				record[field] = value
				continue
			}
			record[field] = stringify(value)
		}
		records = append(records, record)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[map[string]any](buf, schema)
	if len(records) > 0 {
		if _, err := writer.Write(records); err != nil {
			return nil, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// numericColumns reports the fields whose non-null cells are all float64.
// A single string cell demotes the whole column to text.
func numericColumns(fields []string, rows []map[string]any) map[string]bool {
	numeric := make(map[string]bool, len(fields))
	for _, field := range fields {
		numeric[field] = true
	}
	for _, row := range rows {
		for _, field := range fields {
			value := row[field]
			if value == nil {
				continue
			}
			if _, ok := value.(float64); !ok {
				numeric[field] = false
			}
		}
	}
	return numeric
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprintf("%v", typed)
	}
}
