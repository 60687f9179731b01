package catalogfs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestListTables(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.csv", "order_id\nA1\n")
	writeFile(t, dir, "order items.csv", "id\n1\n")
	writeFile(t, dir, "notes.txt", "not a table")

	catalog := New(dir)
	tables, err := catalog.ListTables()
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("ListTables() = %d tables, want 2", len(tables))
	}

	byName := map[string]string{}
	for _, table := range tables {
		byName[table.Name] = table.File
	}
	if byName["orders"] != "orders.csv" {
		t.Fatalf("tables = %+v, want orders -> orders.csv", tables)
	}
	if byName["order_items"] != "order items.csv" {
		t.Fatalf("tables = %+v, want sanitized order_items entry", tables)
	}
}

func TestListTablesMissingDirectory(t *testing.T) {
	catalog := New(filepath.Join(t.TempDir(), "absent"))
	tables, err := catalog.ListTables()
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 0 {
		t.Fatalf("ListTables() = %+v, want empty", tables)
	}
}

func TestPreviewTableReturnsVerbatimRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.csv", "order_id,amount\nA1,10.5\nA2,\nA3,bad\n")

	catalog := New(dir)
	preview, err := catalog.PreviewTable("orders", 2)
	if err != nil {
		t.Fatalf("PreviewTable() error = %v", err)
	}
	if len(preview.Columns) != 2 || preview.Columns[0] != "order_id" {
		t.Fatalf("Columns = %+v", preview.Columns)
	}
	if len(preview.Rows) != 2 {
		t.Fatalf("Rows = %d, want limit applied", len(preview.Rows))
	}
	if preview.Rows[0][1] != "10.5" {
		t.Fatalf("Rows[0] = %+v, want raw string values", preview.Rows[0])
	}
	if preview.Rows[1][1] != "" {
		t.Fatalf("Rows[1] = %+v, empty fields stay empty strings", preview.Rows[1])
	}
}

func TestPreviewTableBySanitizedName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "order items.csv", "id,price\n1,3\n")

	catalog := New(dir)
	preview, err := catalog.PreviewTable("order_items", 5)
	if err != nil {
		t.Fatalf("PreviewTable() error = %v", err)
	}
	if len(preview.Rows) != 1 {
		t.Fatalf("Rows = %d, want 1", len(preview.Rows))
	}
}

func TestPreviewTableUnknownTable(t *testing.T) {
	catalog := New(t.TempDir())
	_, err := catalog.PreviewTable("missing", 5)
	if !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("PreviewTable() error = %v, want ErrTableNotFound", err)
	}
}

func TestPreviewTableHeaderOnlyFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.csv", "a,b\n")

	catalog := New(dir)
	preview, err := catalog.PreviewTable("empty", 5)
	if err != nil {
		t.Fatalf("PreviewTable() error = %v", err)
	}
	if len(preview.Columns) != 2 || len(preview.Rows) != 0 {
		t.Fatalf("preview = %+v, want header and no rows", preview)
	}
}
