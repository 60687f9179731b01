package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// derivedColumn computes an extra text column from a source row at ingestion
// time. Derivation is best effort: a missing or malformed source field
// yields nil, never an error.
type derivedColumn struct {
	name   string
	derive func(row map[string]string) any
}

// The rule set is a closed list keyed by sanitized table name; it covers the
// Olist e-commerce dataset shipped with the service.
var derivedColumnRules = map[string][]derivedColumn{
	"olist_orders_dataset": {
		{name: "purchase_ts", derive: timestampOf("order_purchase_timestamp", "2006-01-02 15:04:05")},
		{name: "purchase_month", derive: timestampOf("order_purchase_timestamp", "2006-01")},
		{name: "purchase_quarter", derive: quarterOf("order_purchase_timestamp")},
	},
	"olist_order_items_dataset": {
		{name: "price_num", derive: numericOf("price")},
		{name: "freight_num", derive: numericOf("freight_value")},
	},
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
}

func timestampOf(field, layout string) func(map[string]string) any {
	return func(row map[string]string) any {
		parsed, ok := parseTimestamp(row[field])
		if !ok {
			return nil
		}
		return parsed.Format(layout)
	}
}

func quarterOf(field string) func(map[string]string) any {
	return func(row map[string]string) any {
		parsed, ok := parseTimestamp(row[field])
		if !ok {
			return nil
		}
		return fmt.Sprintf("%04d-Q%d", parsed.Year(), (int(parsed.Month())+2)/3)
	}
}

func numericOf(field string) func(map[string]string) any {
	return func(row map[string]string) any {
		return cleanNumeric(row[field])
	}
}

func parseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// cleanNumeric strips currency marks and spacing, normalizes a decimal
// comma, and returns the canonical string form, or nil when nothing numeric
// remains.
func cleanNumeric(raw string) any {
	var kept strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			kept.WriteRune(r)
		}
	}
	cleaned := kept.String()
	if cleaned == "" {
		return nil
	}

	dot := strings.LastIndex(cleaned, ".")
	comma := strings.LastIndex(cleaned, ",")
	switch {
	case dot >= 0 && comma >= 0 && comma > dot:
		// 1.234,56 style: dots are thousands separators.
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	case dot >= 0 && comma >= 0:
		// 1,234.56 style.
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case comma >= 0 && strings.Count(cleaned, ",") == 1:
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case comma >= 0:
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
