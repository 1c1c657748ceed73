package roster

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a comma separated roster with a header row.
func ParseCSV(r io.Reader) (*Roster, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read roster csv: %w", err)
	}
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	// csv.Reader skips blank lines and joins quoted multi-line fields, so
	// the file line of every record is taken from the reader itself.
	var (
		lines     [][]string
		fileLines []int
	)
	for {
		line, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster csv: %w", err)
		}
		fileLine, _ := reader.FieldPos(0)
		lines = append(lines, line)
		fileLines = append(fileLines, fileLine)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyRoster
	}
	if err := checkHeader(lines[0]); err != nil {
		return nil, err
	}
	for i, h := range lines[0] {
		lines[0][i] = normalizeHeader(h)
	}

	var records []record
	if err := gocsv.UnmarshalCSV(&linesReader{lines: lines}, &records); err != nil {
		return nil, fmt.Errorf("decode roster csv: %w", err)
	}

	rows := make([]numberedRecord, 0, len(records))
	for i, rec := range records {
		rows = append(rows, numberedRecord{row: fileLines[i+1], record: rec})
	}
	return build(rows)
}

// linesReader replays already split CSV lines to gocsv.
type linesReader struct {
	lines [][]string
	pos   int
}

func (l *linesReader) Read() ([]string, error) {
	if l.pos >= len(l.lines) {
		return nil, io.EOF
	}
	line := l.lines[l.pos]
	l.pos++
	return line, nil
}

func (l *linesReader) ReadAll() ([][]string, error) {
	rest := l.lines[l.pos:]
	l.pos = len(l.lines)
	return rest, nil
}
