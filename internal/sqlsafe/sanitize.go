package sqlsafe

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultRowLimit is appended when the caller does not ask for one.
	DefaultRowLimit = 200
	// MaxRowLimit caps an injected limit. An explicit LIMIT written by the
	// statement author passes through untouched.
	MaxRowLimit = 1000

	rejectPreviewLen = 50
)

var (
	ErrNotReadOnly     = errors.New("only read statements are permitted")
	ErrIncompleteWhere = errors.New("incomplete WHERE clause")
)

var (
	selectPrefix = regexp.MustCompile(`(?i)^SELECT\b`)
	limitToken   = regexp.MustCompile(`(?i)\bLIMIT\b`)
	whereToken   = regexp.MustCompile(`(?i)\bWHERE\b`)
	whereStop    = regexp.MustCompile(`(?i)\b(GROUP\s+BY|ORDER\s+BY|LIMIT)\b`)

	// A WHERE body that is just an identifier, optionally trailed by a bare
	// AND/OR. Models occasionally emit `WHERE customer_state` and stop;
	// rejecting here beats a confusing engine syntax error.
	danglingCondition = regexp.MustCompile(`(?i)^[A-Za-z_\[\]"][A-Za-z0-9_.\[\]"]*([ \t]+(AND|OR))?$`)
)

// Sanitize normalizes an extracted statement for safe read-only execution:
// fences stripped, trailing semicolons removed, SELECT-only enforced,
// structurally dangling WHERE clauses rejected, and a row limit injected
// when none is present.
func Sanitize(statement string, requestedLimit int) (string, error) {
	cleaned := stripFences(statement)
	cleaned = strings.TrimRight(cleaned, "; \t\r\n")

	effective := skipLeadingComments(cleaned)
	if !selectPrefix.MatchString(effective) {
		return "", fmt.Errorf("%w: statement begins with %q", ErrNotReadOnly, preview(effective))
	}

	if fragment, incomplete := incompleteWhere(cleaned); incomplete {
		return "", fmt.Errorf("%w: %q has no comparison", ErrIncompleteWhere, fragment)
	}

	if !limitToken.MatchString(cleaned) {
		cleaned += " LIMIT " + strconv.Itoa(clampLimit(requestedLimit))
	}
	return cleaned, nil
}

func clampLimit(requested int) int {
	if requested == 0 {
		requested = DefaultRowLimit
	}
	if requested < 1 {
		return 1
	}
	if requested > MaxRowLimit {
		return MaxRowLimit
	}
	return requested
}

func stripFences(statement string) string {
	trimmed := strings.TrimSpace(statement)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || isLanguageTag(firstLine) {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func isLanguageTag(line string) bool {
	for _, r := range line {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return !selectPrefix.MatchString(line)
}

func skipLeadingComments(statement string) string {
	for {
		statement = strings.TrimLeft(statement, " \t\r\n")
		switch {
		case strings.HasPrefix(statement, "--"):
			idx := strings.IndexByte(statement, '\n')
			if idx < 0 {
				return ""
			}
			statement = statement[idx+1:]
		case strings.HasPrefix(statement, "/*"):
			idx := strings.Index(statement, "*/")
			if idx < 0 {
				return ""
			}
			statement = statement[idx+2:]
		default:
			return statement
		}
	}
}

// incompleteWhere reports a WHERE clause whose body never reaches a
// comparison. The body runs up to GROUP BY, ORDER BY, LIMIT, or the end of
// the statement.
func incompleteWhere(statement string) (string, bool) {
	loc := whereToken.FindStringIndex(statement)
	if loc == nil {
		return "", false
	}
	body := statement[loc[1]:]
	if stop := whereStop.FindStringIndex(body); stop != nil {
		body = body[:stop[0]]
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return body, true
	}
	if danglingCondition.MatchString(body) {
		return body, true
	}
	return "", false
}

func preview(statement string) string {
	statement = strings.TrimSpace(statement)
	if len(statement) > rejectPreviewLen {
		return statement[:rejectPreviewLen]
	}
	return statement
}
