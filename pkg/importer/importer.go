// Package importer provides parsers for importing logins from other
// password managers. Supports LastPass and Bitwarden CSV exports.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"lockbox/pkg/schema"
	"lockbox/pkg/store"
)

// Source represents the source password manager format.
type Source string

const (
	SourceLastPass  Source = "lastpass"
	SourceBitwarden Source = "bitwarden"
)

// Result contains the outcome of parsing an export file. Items are drafts:
// they carry no ids or timestamps, the store assigns those on add.
type Result struct {
	Items []store.Item

	// Warnings are non-fatal issues encountered during parsing.
	Warnings []string

	// Skipped are rows that were skipped with reasons.
	Skipped []SkippedRow
}

// SkippedRow represents a row that was skipped during import.
type SkippedRow struct {
	Name   string
	Reason string
}

// Parser is the interface for export format parsers.
type Parser interface {
	// Parse parses the export data into login item drafts.
	Parse(data []byte) (*Result, error)

	// Source returns the source type for this parser.
	Source() Source
}

// ParserFor returns the parser for a source name.
func ParserFor(source string) (Parser, error) {
	switch Source(strings.ToLower(source)) {
	case SourceLastPass:
		return &LastPassParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	default:
		return nil, fmt.Errorf("importer: unknown source %q (use lastpass or bitwarden)", source)
	}
}

// readRows parses header-based CSV data into a column index and rows.
// A UTF-8 BOM is stripped and malformed quoting is tolerated, since real
// exports are messy.
func readRows(data []byte, required []string) (colIndex map[string]int, rows [][]string, warnings []string, err error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("importer: failed to read CSV header: %w", err)
	}

	colIndex = make(map[string]int, len(header))
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := colIndex[col]; !ok {
			return nil, nil, nil, fmt.Errorf("importer: missing required column %q", col)
		}
	}

	rowNum := 1
	for {
		rowNum++
		row, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			warnings = append(warnings, fmt.Sprintf("row %d: failed to parse: %v", rowNum, readErr))
			continue
		}
		if len(row) < len(header) {
			warnings = append(warnings, fmt.Sprintf("row %d: column count mismatch (expected %d, got %d)", rowNum, len(header), len(row)))
			continue
		}
		rows = append(rows, row)
	}

	return colIndex, rows, warnings, nil
}

// column returns a row's value for a named column, or "".
func column(row []string, colIndex map[string]int, name string) string {
	i, ok := colIndex[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// loginItem builds a login item draft, dropping empty fields.
func loginItem(name string, fields map[string]string) store.Item {
	for k, v := range fields {
		if v == "" {
			delete(fields, k)
		}
	}
	label := normalizeName(name)
	fields["serviceName"] = label
	return store.Item{
		Category: schema.CategoryLogin,
		Label:    label,
		Fields:   fields,
	}
}

// normalizeName cleans a label from an export file.
func normalizeName(name string) string {
	name = strings.TrimSpace(norm.NFC.String(name))
	if len(name) > store.MaxItemLabelLength {
		name = name[:store.MaxItemLabelLength]
	}
	return name
}

// DeduplicateLabels ensures all labels are unique by appending (2), (3), etc.
func DeduplicateLabels(items []store.Item) {
	seen := make(map[string]int)
	for i := range items {
		label := items[i].Label
		count := seen[label]
		seen[label] = count + 1
		if count > 0 {
			items[i].Label = fmt.Sprintf("%s (%d)", label, count+1)
		}
	}
}
