// Package sqlsafe turns untrusted model output into a single bounded read
// statement, or explains why it cannot.
package sqlsafe

import (
	"regexp"
	"strings"
)

// Upper bound on the fallback span so a runaway blob of prose cannot become
// a "statement".
const fallbackSpanCap = 5000

var (
	markerPattern   = regexp.MustCompile(`(?im)^[ \t]*SQL:[ \t]*`)
	fencePattern    = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n?(.*?)```")
	selectToken     = regexp.MustCompile(`(?i)\bSELECT\b`)
	lineStartSelect = regexp.MustCompile(`(?im)^[ \t]*SELECT\b`)
	blankLine       = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)
)

// Extract pulls the first plausible SQL statement out of free-form text.
// The matchers run in a fixed order and the first hit wins:
//
//  1. an explicit "SQL:" line marker, content up to the next blank line
//  2. a fenced code block whose body mentions SELECT
//  3. a line starting with SELECT, up to blank line, fence, or next marker
//  4. anything from the first SELECT to the first blank line, capped
//
// A false return means no SQL was produced; callers must not treat that as
// an execution error.
func Extract(freeText string) (string, bool) {
	for _, matcher := range []func(string) (string, bool){
		matchMarkerLine,
		matchFencedBlock,
		matchBareSelect,
		matchFallbackSpan,
	} {
		if statement, ok := matcher(freeText); ok {
			return statement, true
		}
	}
	return "", false
}

func matchMarkerLine(text string) (string, bool) {
	loc := markerPattern.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	span := text[loc[1]:]
	if stop := blankLine.FindStringIndex(span); stop != nil {
		span = span[:stop[0]]
	}
	span = strings.TrimSpace(span)
	if span == "" {
		return "", false
	}
	return span, true
}

func matchFencedBlock(text string) (string, bool) {
	for _, match := range fencePattern.FindAllStringSubmatch(text, -1) {
		body := strings.TrimSpace(match[1])
		if body != "" && selectToken.MatchString(body) {
			return body, true
		}
	}
	return "", false
}

func matchBareSelect(text string) (string, bool) {
	loc := lineStartSelect.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	span := truncateSpan(text[loc[0]:])
	span = strings.TrimSpace(span)
	if span == "" {
		return "", false
	}
	return span, true
}

func matchFallbackSpan(text string) (string, bool) {
	loc := selectToken.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	span := text[loc[0]:]
	if stop := blankLine.FindStringIndex(span); stop != nil {
		span = span[:stop[0]]
	}
	if len(span) > fallbackSpanCap {
		span = span[:fallbackSpanCap]
	}
	span = strings.TrimSpace(span)
	if span == "" {
		return "", false
	}
	return span, true
}

// truncateSpan cuts a candidate statement at the first blank line, fence
// marker, or SQL: marker, whichever comes first.
func truncateSpan(span string) string {
	end := len(span)
	if stop := blankLine.FindStringIndex(span); stop != nil && stop[0] < end {
		end = stop[0]
	}
	if idx := strings.Index(span, "```"); idx >= 0 && idx < end {
		end = idx
	}
	if loc := markerPattern.FindStringIndex(span); loc != nil && loc[0] > 0 && loc[0] < end {
		end = loc[0]
	}
	return span[:end]
}
