package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	chartSheet = "Chart"
	seatsSheet = "Seats"
)

// XLSXExporter writes a workbook with the grid on one sheet and a seat list on another.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render builds the workbook in memory.
func (e *XLSXExporter) Render(chart Chart) ([]byte, error) {
	if err := chart.validate(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName(f.GetSheetName(0), chartSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if chart.Title != "" {
		if err := f.SetCellValue(chartSheet, "A1", chart.Title); err != nil {
			return nil, err
		}
	}
	if err := f.SetCellValue(chartSheet, "A2", "FRONT"); err != nil {
		return nil, err
	}
	for r, row := range chart.Cells() {
		values := make([]interface{}, len(row))
		for i, label := range row {
			values[i] = label
		}
		cell, err := excelize.CoordinatesToCellName(1, r+3)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(chartSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write chart row %d: %w", r+1, err)
		}
	}
	noteRow := chart.Rows + 4
	for i, note := range chart.Notes {
		cell, err := excelize.CoordinatesToCellName(1, noteRow+i)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(chartSheet, cell, note); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(seatsSheet); err != nil {
		return nil, fmt.Errorf("create seats sheet: %w", err)
	}
	if err := f.SetSheetRow(seatsSheet, "A1", &[]interface{}{"row", "col", "number", "gender", "special"}); err != nil {
		return nil, err
	}
	for i, s := range chart.Seats {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := []interface{}{s.Row + 1, s.Col + 1, s.StudentID, s.Gender, strings.Join(s.Special, "/")}
		if err := f.SetSheetRow(seatsSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write seat %d: %w", s.StudentID, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
