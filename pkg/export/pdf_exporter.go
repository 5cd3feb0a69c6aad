package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// MetaLine is a labelled value printed above the table.
type MetaLine struct {
	Label string
	Value string
}

// Report carries the heading of an exported table.
type Report struct {
	Title string
	Meta  []MetaLine
}

// PDFExporter renders datasets into a basic tabular PDF.
type PDFExporter struct {
	// Widths optionally fixes column widths in mm, keyed by header.
	Widths map[string]float64
}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates an A4 PDF with the report heading and the table body.
func (e *PDFExporter) Render(data Dataset, report Report) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if report.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(report.Title), "", 1, "C", false, 0, "")
	}
	if len(report.Meta) > 0 {
		pdf.SetFont("Arial", "", 9)
		for _, meta := range report.Meta {
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s: %s", meta.Label, meta.Value)), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)

	widths := e.columnWidths(data.Headers)

	pdf.SetFont("Arial", "B", 10)
	for i, header := range data.Headers {
		pdf.CellFormat(widths[i], 8, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for i, header := range data.Headers {
			pdf.CellFormat(widths[i], 7, tr(row[header]), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// columnWidths honours fixed widths and splits the remaining page width evenly.
func (e *PDFExporter) columnWidths(headers []string) []float64 {
	const pageWidth = 190.0
	widths := make([]float64, len(headers))
	remaining := pageWidth
	flexible := 0
	for i, header := range headers {
		if w, ok := e.Widths[header]; ok && w > 0 {
			widths[i] = w
			remaining -= w
			continue
		}
		flexible++
	}
	if flexible == 0 {
		return widths
	}
	share := remaining / float64(flexible)
	if share < 10 {
		share = 10
	}
	for i := range widths {
		if widths[i] == 0 {
			widths[i] = share
		}
	}
	return widths
}
