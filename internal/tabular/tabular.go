// Package tabular reads and writes flat row sets as CSV or XLSX.
//
// Export takes rows of plain string maps plus an ordered header mapping.
// Import keys each row by a reverse header mapping and leaves every value
// as text; callers coerce numeric fields themselves.
package tabular

import (
	"errors"
	"strings"
)

// Format of an import or export file
type Format string

// Supported formats
const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrNoHeader          = errors.New("file has no header row")
)

// Column maps a row key to its display header
type Column struct {
	Key    string
	Header string
}

// Row is one record keyed by column key
type Row map[string]string

// ParseFormat accepts "csv" or "xlsx", case-insensitively
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", ErrUnsupportedFormat
}

// ContentType returns the MIME type for f
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// ReverseMapping builds the header -> key mapping for import from export columns
func ReverseMapping(cols []Column) map[string]string {
	out := make(map[string]string, len(cols))
	for _, c := range cols {
		out[c.Header] = c.Key
	}
	return out
}

func headerRow(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Header
	}
	return out
}

func valueRow(cols []Column, row Row) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = row[c.Key]
	}
	return out
}

// toRows turns raw records into keyed rows. Headers missing from mapping are
// used verbatim as keys; a nil mapping keeps all headers as-is. Blank lines are skipped.
func toRows(records [][]string, mapping map[string]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, ErrNoHeader
	}

	keys := make([]string, len(records[0]))
	for i, h := range records[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if k, ok := mapping[h]; ok {
			keys[i] = k
		} else {
			keys[i] = h
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if blank(rec) {
			continue
		}
		row := make(Row, len(keys))
		for i, k := range keys {
			if k == "" {
				continue
			}
			if i < len(rec) {
				row[k] = strings.TrimSpace(rec[i])
			} else {
				row[k] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
