// Package roster turns uploaded class lists into typed seating inputs.
//
// Both CSV and XLSX files use the same columns:
//
//	number,gender,special,separate_from
//
// special holds "/"-joined accommodation tags and separate_from an optional
// attendance number of a student who must not sit nearby. Malformed rows are
// rejected individually and reported together.
package roster

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/seating-api/internal/seating"
)

const (
	ColumnNumber       = "number"
	ColumnGender       = "gender"
	ColumnSpecial      = "special"
	ColumnSeparateFrom = "separate_from"

	tagSeparator = "/"
)

var (
	ErrMalformedRoster   = errors.New("malformed roster")
	ErrEmptyRoster       = errors.New("roster has no students")
	ErrMissingColumn     = errors.New("roster is missing a required column")
	ErrUnsupportedFormat = errors.New("unsupported roster format")
)

var requiredColumns = []string{ColumnNumber, ColumnGender}

var tagAliases = map[string]seating.Tag{
	"vision":  seating.TagVision,
	"視力":      seating.TagVision,
	"height":  seating.TagHeight,
	"身長":      seating.TagHeight,
	"hearing": seating.TagHearing,
	"聴力":      seating.TagHearing,
}

var genderAliases = map[string]seating.Gender{
	"M": seating.GenderMale,
	"男": seating.GenderMale,
	"F": seating.GenderFemale,
	"女": seating.GenderFemale,
}

// Roster is the validated content of an uploaded file.
type Roster struct {
	Students []seating.Student `json:"students"`
	Pairs    []seating.Pair    `json:"pairs"`
}

// RowError describes why a single row was rejected.
type RowError struct {
	Row    int    `json:"row"`
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s %q: %s", e.Row, e.Field, e.Value, e.Reason)
}

// MalformedRosterError accumulates every rejected row of a file.
type MalformedRosterError struct {
	Rows []RowError
}

func (e *MalformedRosterError) Error() string {
	if len(e.Rows) == 1 {
		return fmt.Sprintf("malformed roster: %s", e.Rows[0].Error())
	}
	return fmt.Sprintf("malformed roster: %d rows rejected, first: %s", len(e.Rows), e.Rows[0].Error())
}

// Is matches ErrMalformedRoster.
func (e *MalformedRosterError) Is(target error) bool {
	return target == ErrMalformedRoster
}

// Parse picks the decoder from the file extension.
func Parse(filename string, r io.Reader) (*Roster, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(r)
	case ".xlsx":
		return ParseXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
}

// record is one raw row before validation.
type record struct {
	Number       string `csv:"number"`
	Gender       string `csv:"gender"`
	Special      string `csv:"special"`
	SeparateFrom string `csv:"separate_from"`
}

type numberedRecord struct {
	row int
	record
}

func checkHeader(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[normalizeHeader(h)] = true
	}
	for _, col := range requiredColumns {
		if !present[col] {
			return fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}
	return nil
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.TrimSpace(h))
}

// build validates raw rows. Valid rows become students even when other rows
// fail; the returned error then lists every failure.
func build(rows []numberedRecord) (*Roster, error) {
	var (
		rowErrs  []RowError
		students []seating.Student
		partners = make(map[int]int)
		rowOf    = make(map[int]int)
	)

	for _, r := range rows {
		student, partner, errs := parseRecord(r)
		if len(errs) == 0 {
			if prev, dup := rowOf[student.ID]; dup {
				errs = append(errs, RowError{Row: r.row, Field: ColumnNumber, Value: r.Number, Reason: fmt.Sprintf("duplicates row %d", prev)})
			}
		}
		if len(errs) > 0 {
			rowErrs = append(rowErrs, errs...)
			continue
		}
		rowOf[student.ID] = r.row
		students = append(students, student)
		if partner != 0 {
			partners[student.ID] = partner
		}
	}

	var pairs []seating.Pair
	for _, s := range students {
		partner, ok := partners[s.ID]
		if !ok {
			continue
		}
		if _, known := rowOf[partner]; !known {
			rowErrs = append(rowErrs, RowError{Row: rowOf[s.ID], Field: ColumnSeparateFrom, Value: strconv.Itoa(partner), Reason: "no student with this number"})
			continue
		}
		pairs = append(pairs, seating.NewPair(s.ID, partner))
	}
	pairs, err := seating.NormalizePairs(pairs)
	if err != nil {
		return nil, err
	}

	out := &Roster{Students: students, Pairs: pairs}
	if len(rowErrs) > 0 {
		sort.SliceStable(rowErrs, func(i, j int) bool { return rowErrs[i].Row < rowErrs[j].Row })
		return out, &MalformedRosterError{Rows: rowErrs}
	}
	if len(students) == 0 {
		return nil, ErrEmptyRoster
	}
	return out, nil
}

func parseRecord(r numberedRecord) (seating.Student, int, []RowError) {
	var errs []RowError
	student := seating.Student{}

	id, err := strconv.Atoi(strings.TrimSpace(r.Number))
	switch {
	case strings.TrimSpace(r.Number) == "":
		errs = append(errs, RowError{Row: r.row, Field: ColumnNumber, Reason: "is required"})
	case err != nil:
		errs = append(errs, RowError{Row: r.row, Field: ColumnNumber, Value: r.Number, Reason: "must be an integer"})
	case id < 1:
		errs = append(errs, RowError{Row: r.row, Field: ColumnNumber, Value: r.Number, Reason: "must be positive"})
	default:
		student.ID = id
	}

	gender, ok := genderAliases[strings.ToUpper(strings.TrimSpace(r.Gender))]
	if !ok {
		errs = append(errs, RowError{Row: r.row, Field: ColumnGender, Value: r.Gender, Reason: "must be M or F"})
	}
	student.Gender = gender

	seen := make(map[seating.Tag]bool)
	for _, raw := range strings.Split(r.Special, tagSeparator) {
		token := strings.ToLower(strings.TrimSpace(raw))
		if token == "" {
			continue
		}
		tag, known := tagAliases[token]
		if !known {
			errs = append(errs, RowError{Row: r.row, Field: ColumnSpecial, Value: raw, Reason: "unknown accommodation tag"})
			continue
		}
		if !seen[tag] {
			seen[tag] = true
			student.Special = append(student.Special, tag)
		}
	}

	partner := 0
	if raw := strings.TrimSpace(r.SeparateFrom); raw != "" {
		value, err := strconv.Atoi(raw)
		switch {
		case err != nil:
			errs = append(errs, RowError{Row: r.row, Field: ColumnSeparateFrom, Value: r.SeparateFrom, Reason: "must be an integer"})
		case value < 1:
			errs = append(errs, RowError{Row: r.row, Field: ColumnSeparateFrom, Value: r.SeparateFrom, Reason: "must be positive"})
		case value == student.ID:
			errs = append(errs, RowError{Row: r.row, Field: ColumnSeparateFrom, Value: r.SeparateFrom, Reason: "cannot reference the student itself"})
		default:
			partner = value
		}
	}

	return student, partner, errs
}
