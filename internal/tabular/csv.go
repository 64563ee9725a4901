package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes a header line followed by one line per row
func WriteCSV(w io.Writer, cols []Column, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headerRow(cols)); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		if err := cw.Write(valueRow(cols, row)); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads rows keyed through mapping (header -> key)
func ReadCSV(r io.Reader, mapping map[string]string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return toRows(records, mapping)
}
