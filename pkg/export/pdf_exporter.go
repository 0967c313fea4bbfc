package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a Report as one table per section.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and a table per section.
func (e *PDFExporter) Render(report Report) ([]byte, error) {
	if err := report.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if report.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(report.Title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	colWidth := 190.0 / float64(len(report.Headers))
	for _, section := range report.Sections {
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 9, section.Title, "", 1, "", false, 0, "")

		pdf.SetFont("Arial", "B", 10)
		for _, header := range report.Headers {
			pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, row := range section.Rows {
			for _, value := range row {
				pdf.CellFormat(colWidth, 7, value, "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}

		if section.Summary != "" {
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 7, section.Summary, "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
