package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfUsableWidth = 277.0
	pdfCellHeight  = 14.0
)

// PDFExporter draws the chart as a landscape grid with the board at the top.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

func (e *PDFExporter) ContentType() string { return "application/pdf" }

func (e *PDFExporter) Extension() string { return "pdf" }

// Render creates a PDF document with a title, the seat grid and any notes.
func (e *PDFExporter) Render(chart Chart) ([]byte, error) {
	if err := chart.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.AddPage()

	if chart.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, chart.Title, "", 1, "C", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(220, 220, 220)
	pdf.CellFormat(0, 8, "FRONT", "1", 1, "C", true, 0, "")
	pdf.Ln(3)

	colWidth := pdfUsableWidth / float64(chart.Cols)
	pdf.SetFont("Arial", "", 10)
	for _, row := range chart.Cells() {
		for _, label := range row {
			fill := label == ""
			pdf.CellFormat(colWidth, pdfCellHeight, label, "1", 0, "C", fill, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(chart.Notes) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Arial", "", 9)
		for _, note := range chart.Notes {
			pdf.MultiCell(0, 5, note, "", "L", false)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
