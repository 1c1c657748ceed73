package roster

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first sheet of a workbook. Row 1 is the header.
func ParseXLSX(r io.Reader) (*Roster, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open roster workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("roster workbook has no sheets")
	}
	sheetRows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(sheetRows) == 0 {
		return nil, ErrEmptyRoster
	}
	if err := checkHeader(sheetRows[0]); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(sheetRows[0]))
	for i, h := range sheetRows[0] {
		index[normalizeHeader(h)] = i
	}
	cell := func(row []string, column string) string {
		i, ok := index[column]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	rows := make([]numberedRecord, 0, len(sheetRows)-1)
	for i, row := range sheetRows[1:] {
		if blank(row) {
			continue
		}
		rows = append(rows, numberedRecord{
			row: i + 2,
			record: record{
				Number:       cell(row, ColumnNumber),
				Gender:       cell(row, ColumnGender),
				Special:      cell(row, ColumnSpecial),
				SeparateFrom: cell(row, ColumnSeparateFrom),
			},
		})
	}
	return build(rows)
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
