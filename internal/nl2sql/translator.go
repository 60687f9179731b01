// Package nl2sql turns a natural language question into model output that
// should contain a single read query. The raw model text is returned as-is;
// pulling the statement out of it is the sanitizer's job.
package nl2sql

import "context"

// TableContext describes one ingested table for the prompt: its name, its
// columns, and a few sample rows so the model sees real value shapes.
type TableContext struct {
	TableName  string   `json:"table_name"`
	Columns    []string `json:"columns"`
	SampleRows [][]any  `json:"sample_rows"`
}

type Request struct {
	Question string         `json:"question"`
	Tables   []TableContext `json:"tables"`
}

// Result carries the untouched model answer. Answer may hold prose around
// the statement or no statement at all.
type Result struct {
	Answer   string `json:"answer"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
}
