package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

type seatRow struct {
	Row     int    `csv:"row"`
	Col     int    `csv:"col"`
	Number  int    `csv:"number"`
	Gender  string `csv:"gender"`
	Special string `csv:"special"`
}

// CSVExporter writes one line per occupied seat, front row first.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

func (e *CSVExporter) ContentType() string { return "text/csv" }

func (e *CSVExporter) Extension() string { return "csv" }

// Render produces CSV encoded bytes for the chart.
func (e *CSVExporter) Render(chart Chart) ([]byte, error) {
	if err := chart.validate(); err != nil {
		return nil, err
	}

	rows := make([]*seatRow, 0, len(chart.Seats))
	for _, s := range chart.Seats {
		rows = append(rows, &seatRow{
			Row:     s.Row + 1,
			Col:     s.Col + 1,
			Number:  s.StudentID,
			Gender:  s.Gender,
			Special: strings.Join(s.Special, "/"),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Row != rows[j].Row {
			return rows[i].Row < rows[j].Row
		}
		return rows[i].Col < rows[j].Col
	})

	out, err := gocsv.MarshalString(&rows)
	if err != nil {
		return nil, fmt.Errorf("marshal seat csv: %w", err)
	}
	return []byte(out), nil
}
