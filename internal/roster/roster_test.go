package roster

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/seating-api/internal/seating"
)

func TestParseCSVValidRoster(t *testing.T) {
	input := "number,gender,special,separate_from\n" +
		"1,M,,\n" +
		"2,F,vision/hearing,\n" +
		"3,m,身長,1\n" +
		"4,F,,3\n"

	r, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, r.Students, 4)
	assert.Equal(t, seating.Student{ID: 2, Gender: seating.GenderFemale, Special: []seating.Tag{seating.TagVision, seating.TagHearing}}, r.Students[1])
	assert.Equal(t, seating.Student{ID: 3, Gender: seating.GenderMale, Special: []seating.Tag{seating.TagHeight}}, r.Students[2])
	assert.Equal(t, []seating.Pair{{A: 1, B: 3}, {A: 3, B: 4}}, r.Pairs)
}

func TestParseCSVCollapsesMutualPartners(t *testing.T) {
	input := "number,gender,separate_from\n1,M,2\n2,F,1\n"

	r, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []seating.Pair{{A: 1, B: 2}}, r.Pairs)
}

func TestParseCSVAccumulatesRowErrors(t *testing.T) {
	input := "Number,Gender,Special,Separate_From\n" +
		"1,M,,\n" +
		"x,F,,\n" +
		"3,Q,,\n" +
		"4,F,wings,\n" +
		"5,M,,abc\n" +
		"6,F,,6\n" +
		"1,F,,\n" +
		"8,M,,42\n" +
		"9,F,,\n"

	r, err := ParseCSV(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRoster))

	var malformed *MalformedRosterError
	require.True(t, errors.As(err, &malformed))
	rows := make([]int, 0, len(malformed.Rows))
	fields := make([]string, 0, len(malformed.Rows))
	for _, re := range malformed.Rows {
		rows = append(rows, re.Row)
		fields = append(fields, re.Field)
	}
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9}, rows)
	assert.Equal(t, []string{ColumnNumber, ColumnGender, ColumnSpecial, ColumnSeparateFrom, ColumnSeparateFrom, ColumnNumber, ColumnSeparateFrom}, fields)

	require.NotNil(t, r)
	ids := make([]int, 0, len(r.Students))
	for _, s := range r.Students {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int{1, 8, 9}, ids)
	assert.Empty(t, r.Pairs)
}

func rejectedRows(t *testing.T, err error) []int {
	t.Helper()
	var malformed *MalformedRosterError
	require.True(t, errors.As(err, &malformed))
	rows := make([]int, 0, len(malformed.Rows))
	for _, re := range malformed.Rows {
		rows = append(rows, re.Row)
	}
	return rows
}

func TestParseCSVRowNumbersFollowFileLines(t *testing.T) {
	t.Run("blank line", func(t *testing.T) {
		input := "number,gender,special,separate_from\n1,M,,\n\n2,X,,\n"

		_, err := ParseCSV(strings.NewReader(input))
		assert.Equal(t, []int{4}, rejectedRows(t, err))
	})

	t.Run("quoted multi-line field", func(t *testing.T) {
		input := "number,gender,special,separate_from\n1,M,\"vision\n\",\n2,F,,\n3,X,,\n"

		_, err := ParseCSV(strings.NewReader(input))
		assert.Equal(t, []int{5}, rejectedRows(t, err))
	})
}

func TestParseCSVMissingColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("number,special\n1,\n"))
	assert.True(t, errors.Is(err, ErrMissingColumn))
}

func TestParseCSVHeaderOnly(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("number,gender\n"))
	assert.True(t, errors.Is(err, ErrEmptyRoster))

	_, err = ParseCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrEmptyRoster))
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"number", "gender", "special", "separate_from"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{1, "F", "視力", ""}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]interface{}{2, "M", "", 1}))
	require.NoError(t, f.SetSheetRow(sheet, "A5", &[]interface{}{3, "M", "height", ""}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	r, err := Parse("class-1a.xlsx", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, r.Students, 3)
	assert.True(t, seating.PrefersFront(r.Students[0]))
	assert.True(t, seating.PrefersBack(r.Students[2]))
	assert.Equal(t, []seating.Pair{{A: 1, B: 2}}, r.Pairs)
}

func TestParseXLSXReportsSheetRowNumbers(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"number", "gender"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{1, "F"}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]interface{}{"two", "M"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = ParseXLSX(bytes.NewReader(buf.Bytes()))
	var malformed *MalformedRosterError
	require.True(t, errors.As(err, &malformed))
	require.Len(t, malformed.Rows, 1)
	assert.Equal(t, 4, malformed.Rows[0].Row)
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse("roster.txt", strings.NewReader("1,M"))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}
