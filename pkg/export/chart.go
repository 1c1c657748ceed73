package export

import (
	"errors"
	"fmt"
	"strings"
)

// Format identifies an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned by ForFormat for unknown encodings.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// SeatEntry is one occupied seat in a chart.
type SeatEntry struct {
	StudentID int
	Gender    string
	Special   []string
	Row       int
	Col       int
}

// Label is the short text printed inside a seat cell, for example "F12".
func (s SeatEntry) Label() string {
	return fmt.Sprintf("%s%d", s.Gender, s.StudentID)
}

// Chart is a seating chart ready to be rendered. Row 0 faces the board.
type Chart struct {
	Title string
	Rows  int
	Cols  int
	Seats []SeatEntry
	Notes []string
}

// Cells lays the seats out as a Rows x Cols matrix of labels. Empty seats are "".
func (c Chart) Cells() [][]string {
	cells := make([][]string, c.Rows)
	for r := range cells {
		cells[r] = make([]string, c.Cols)
	}
	for _, s := range c.Seats {
		if s.Row < 0 || s.Row >= c.Rows || s.Col < 0 || s.Col >= c.Cols {
			continue
		}
		cells[s.Row][s.Col] = s.Label()
	}
	return cells
}

func (c Chart) validate() error {
	if c.Rows <= 0 || c.Cols <= 0 {
		return fmt.Errorf("chart needs a positive grid, got %dx%d", c.Rows, c.Cols)
	}
	return nil
}

// Renderer encodes a chart into a downloadable document.
type Renderer interface {
	Render(chart Chart) ([]byte, error)
	ContentType() string
	Extension() string
}

// ForFormat resolves the renderer for a format name.
func ForFormat(format string) (Renderer, error) {
	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case FormatCSV:
		return NewCSVExporter(), nil
	case FormatPDF:
		return NewPDFExporter(), nil
	case FormatXLSX:
		return NewXLSXExporter(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
