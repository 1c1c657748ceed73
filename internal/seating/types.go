package seating

import "fmt"

// Gender marks a student on the rendered chart.
type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
)

// Valid reports whether g is one of the known gender tokens.
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// Tag is an accommodation marker attached to a student.
type Tag string

const (
	// TagVision students need to sit near the board.
	TagVision Tag = "vision"
	// TagHeight students sit at the back so they do not block others.
	TagHeight Tag = "height"
	// TagHearing is recorded but does not influence placement.
	TagHearing Tag = "hearing"
)

// Valid reports whether t is a known accommodation tag.
func (t Tag) Valid() bool {
	switch t {
	case TagVision, TagHeight, TagHearing:
		return true
	}
	return false
}

// Student is a single roster entry.
type Student struct {
	ID      int    `json:"id"`
	Gender  Gender `json:"gender"`
	Special []Tag  `json:"special,omitempty"`
}

// HasTag reports whether the student carries the given tag.
func (s Student) HasTag(tag Tag) bool {
	for _, t := range s.Special {
		if t == tag {
			return true
		}
	}
	return false
}

// Seat is a 0-indexed grid cell.
type Seat struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (s Seat) String() string {
	return fmt.Sprintf("(%d,%d)", s.Row, s.Col)
}

// SeatSet is an unordered set of seats.
type SeatSet map[Seat]struct{}

// Has reports whether seat is in the set.
func (s SeatSet) Has(seat Seat) bool {
	_, ok := s[seat]
	return ok
}

// Assignment maps student ids to seats.
type Assignment map[int]Seat

// Violation records a separation pair whose members ended up too close.
type Violation struct {
	Pair  Pair `json:"pair"`
	SeatA Seat `json:"seatA"`
	SeatB Seat `json:"seatB"`
}

// PreferenceMiss records a student whose front/back preference could not be honoured.
type PreferenceMiss struct {
	StudentID int  `json:"studentId"`
	Wanted    Tag  `json:"wanted"`
	Seat      Seat `json:"seat"`
}
