package nl2sql

import (
	"context"
	"testing"

	"github.com/askcsv/askcsv/internal/store"
)

func TestBuildTableContext(t *testing.T) {
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	if err := s.CreateTableIfNotExists(ctx, "orders", []string{"order_id", "amount"}); err != nil {
		t.Fatalf("CreateTableIfNotExists() error = %v", err)
	}
	rows := [][]any{{"A1", "10.5"}, {"A2", nil}, {"A3", "7"}}
	if _, err := s.InsertRows(ctx, "orders", []string{"order_id", "amount"}, rows); err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}

	tables, err := BuildTableContext(ctx, s, 2)
	if err != nil {
		t.Fatalf("BuildTableContext() error = %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("tables = %d, want 1", len(tables))
	}
	if tables[0].TableName != "orders" {
		t.Fatalf("TableName = %q", tables[0].TableName)
	}
	if len(tables[0].Columns) != 2 || tables[0].Columns[0] != "order_id" {
		t.Fatalf("Columns = %+v", tables[0].Columns)
	}
	if len(tables[0].SampleRows) != 2 {
		t.Fatalf("SampleRows = %d, want sample cap applied", len(tables[0].SampleRows))
	}
}
