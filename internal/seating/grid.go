package seating

import (
	"fmt"
	"math/rand"
)

// Grid describes the classroom layout.
type Grid struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Validate rejects non-positive dimensions.
func (g Grid) Validate() error {
	if g.Rows < 1 || g.Cols < 1 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidGrid, g.Rows, g.Cols)
	}
	return nil
}

// Capacity returns the number of seats in the grid.
func (g Grid) Capacity() int {
	return g.Rows * g.Cols
}

// Contains reports whether seat lies inside the grid.
func (g Grid) Contains(seat Seat) bool {
	return seat.Row >= 0 && seat.Row < g.Rows && seat.Col >= 0 && seat.Col < g.Cols
}

// Seats enumerates every seat row by row.
func (g Grid) Seats() []Seat {
	if g.Rows < 1 || g.Cols < 1 {
		return nil
	}
	seats := make([]Seat, 0, g.Capacity())
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			seats = append(seats, Seat{Row: r, Col: c})
		}
	}
	return seats
}

// ShuffledSeats returns every seat in an order fixed by seed.
func (g Grid) ShuffledSeats(seed int64) []Seat {
	seats := g.Seats()
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(seats), func(i, j int) {
		seats[i], seats[j] = seats[j], seats[i]
	})
	return seats
}

// IsFrontRow reports whether row belongs to the front half.
func (g Grid) IsFrontRow(row int) bool {
	return row < g.Rows/2
}

// IsBackRow reports whether row belongs to the back half.
func (g Grid) IsBackRow(row int) bool {
	return row >= g.Rows/2
}

// validateOrder checks that order is a permutation of the grid seats.
func (g Grid) validateOrder(order []Seat) error {
	if len(order) != g.Capacity() {
		return fmt.Errorf("%w: got %d seats for a %dx%d grid", ErrInvalidSeatOrder, len(order), g.Rows, g.Cols)
	}
	seen := make(SeatSet, len(order))
	for _, seat := range order {
		if !g.Contains(seat) {
			return fmt.Errorf("%w: seat %s outside grid", ErrInvalidSeatOrder, seat)
		}
		if seen.Has(seat) {
			return fmt.Errorf("%w: seat %s listed twice", ErrInvalidSeatOrder, seat)
		}
		seen[seat] = struct{}{}
	}
	return nil
}

// BuildChart renders the assignment as per-cell labels; unused seats stay empty.
func BuildChart(grid Grid, students []Student, assignment Assignment) [][]string {
	chart := make([][]string, grid.Rows)
	for r := range chart {
		chart[r] = make([]string, grid.Cols)
	}
	for _, student := range students {
		seat, ok := assignment[student.ID]
		if !ok || !grid.Contains(seat) {
			continue
		}
		chart[seat.Row][seat.Col] = Label(student)
	}
	return chart
}

// Label formats the chart cell for a student, e.g. "F12".
func Label(s Student) string {
	return fmt.Sprintf("%s%d", s.Gender, s.ID)
}
