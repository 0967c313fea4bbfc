package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// CSVExporter flattens a Report into CSV, prefixing each row with its section title.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the report.
func (e *CSVExporter) Render(report Report) ([]byte, error) {
	if err := report.validate(); err != nil {
		return nil, err
	}
	group := report.GroupHeader
	if group == "" {
		group = "Group"
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(append([]string{group}, report.Headers...)); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, section := range report.Sections {
		for _, row := range section.Rows {
			if err := writer.Write(append([]string{section.Title}, row...)); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
