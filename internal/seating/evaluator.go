package seating

// PrefersFront reports whether the student needs a seat near the board.
func PrefersFront(s Student) bool {
	return s.HasTag(TagVision)
}

// PrefersBack reports whether the student should sit towards the back.
func PrefersBack(s Student) bool {
	return s.HasTag(TagHeight)
}

// TooClose reports whether two seats are within Chebyshev distance 1.
// A seat is too close to itself.
func TooClose(a, b Seat) bool {
	return abs(a.Row-b.Row) <= 1 && abs(a.Col-b.Col) <= 1
}

// ForbiddenSeats returns the in-grid seats the student may not take because a
// separation partner is already seated next to them. Partners without a seat
// yet do not contribute.
func ForbiddenSeats(grid Grid, student Student, assignment Assignment, pairs []Pair) SeatSet {
	forbidden := make(SeatSet)
	for _, p := range pairs {
		partner, ok := p.Partner(student.ID)
		if !ok {
			continue
		}
		seat, placed := assignment[partner]
		if !placed {
			continue
		}
		for _, near := range neighbourhood(grid, seat) {
			forbidden[near] = struct{}{}
		}
	}
	return forbidden
}

// neighbourhood lists the seat and its eight neighbours clipped to the grid.
func neighbourhood(grid Grid, center Seat) []Seat {
	seats := make([]Seat, 0, 9)
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			seat := Seat{Row: center.Row + dr, Col: center.Col + dc}
			if grid.Contains(seat) {
				seats = append(seats, seat)
			}
		}
	}
	return seats
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
