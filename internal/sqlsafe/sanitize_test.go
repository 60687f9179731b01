package sqlsafe

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeRejectsWriteStatements(t *testing.T) {
	tests := []string{
		"DROP TABLE orders",
		"DELETE FROM orders",
		"UPDATE orders SET amount = 0",
		"INSERT INTO orders VALUES (1)",
		"CREATE TABLE x (a VARCHAR)",
		"-- comment first\nDROP TABLE orders",
	}
	for _, statement := range tests {
		_, err := Sanitize(statement, 0)
		if !errors.Is(err, ErrNotReadOnly) {
			t.Fatalf("Sanitize(%q) error = %v, want ErrNotReadOnly", statement, err)
		}
	}
}

func TestSanitizeRejectionQuotesOffendingPrefix(t *testing.T) {
	long := "DROP TABLE " + strings.Repeat("x", 200)
	_, err := Sanitize(long, 0)
	if err == nil {
		t.Fatal("Sanitize() expected error")
	}
	if !strings.Contains(err.Error(), long[:rejectPreviewLen]) {
		t.Fatalf("error %q should quote the first %d characters", err, rejectPreviewLen)
	}
	if strings.Contains(err.Error(), long) {
		t.Fatalf("error %q should truncate the offending text", err)
	}
}

func TestSanitizeAcceptsSelectAfterComments(t *testing.T) {
	got, err := Sanitize("-- top orders\n/* by state */\nSELECT * FROM orders", 0)
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if !strings.HasSuffix(got, " LIMIT 200") {
		t.Fatalf("Sanitize() = %q, want injected default limit", got)
	}
}

func TestSanitizeStripsFencesAndSemicolons(t *testing.T) {
	got, err := Sanitize("```sql\nSELECT * FROM orders;;\n```", 0)
	if err != nil {
		t.Fatalf("Sanitize() error = %v", err)
	}
	if got != "SELECT * FROM orders LIMIT 200" {
		t.Fatalf("Sanitize() = %q", got)
	}
}

func TestSanitizeLimitInjection(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		requested int
		want      string
	}{
		{
			name:      "default limit",
			statement: "SELECT * FROM orders",
			requested: 0,
			want:      "SELECT * FROM orders LIMIT 200",
		},
		{
			name:      "requested limit",
			statement: "SELECT * FROM orders",
			requested: 50,
			want:      "SELECT * FROM orders LIMIT 50",
		},
		{
			name:      "clamped above max",
			statement: "SELECT * FROM orders",
			requested: 99999,
			want:      "SELECT * FROM orders LIMIT 1000",
		},
		{
			name:      "clamped below one",
			statement: "SELECT * FROM orders",
			requested: -5,
			want:      "SELECT * FROM orders LIMIT 1",
		},
		{
			name:      "explicit limit untouched",
			statement: "SELECT * FROM orders LIMIT 999999",
			requested: 10,
			want:      "SELECT * FROM orders LIMIT 999999",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.statement, tt.requested)
			if err != nil {
				t.Fatalf("Sanitize() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Sanitize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeIncompleteWhere(t *testing.T) {
	tests := []struct {
		name      string
		statement string
		fragment  string
	}{
		{
			name:      "bare identifier",
			statement: "SELECT * FROM t WHERE customer_state",
			fragment:  "customer_state",
		},
		{
			name:      "identifier with dangling AND",
			statement: "SELECT * FROM t WHERE customer_state AND",
			fragment:  "customer_state AND",
		},
		{
			name:      "bare identifier before order by",
			statement: "SELECT * FROM t WHERE customer_state ORDER BY x",
			fragment:  "customer_state",
		},
		{
			name:      "empty where before limit",
			statement: "SELECT * FROM t WHERE LIMIT 5",
			fragment:  "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sanitize(tt.statement, 0)
			if !errors.Is(err, ErrIncompleteWhere) {
				t.Fatalf("Sanitize(%q) error = %v, want ErrIncompleteWhere", tt.statement, err)
			}
			if tt.fragment != "" && !strings.Contains(err.Error(), tt.fragment) {
				t.Fatalf("error %q should quote %q", err, tt.fragment)
			}
		})
	}
}

func TestSanitizeCompleteWhereAccepted(t *testing.T) {
	tests := []string{
		"SELECT * FROM t WHERE customer_state = 'SP'",
		"SELECT * FROM t WHERE amount > 10 AND customer_state = 'SP'",
		"SELECT * FROM t WHERE customer_state IS NOT NULL",
		"SELECT * FROM t",
	}
	for _, statement := range tests {
		if _, err := Sanitize(statement, 0); err != nil {
			t.Fatalf("Sanitize(%q) error = %v", statement, err)
		}
	}
}
