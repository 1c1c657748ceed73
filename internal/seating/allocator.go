package seating

import "fmt"

// Allocator seats students greedily, one at a time, in roster order.
//
// Each student takes the first seat in Order that is free, not forbidden by an
// already seated separation partner and, when possible, in the half of the room
// their accommodation asks for. Earlier placements are never revisited, so
// separation pairs whose second member is seated first can still end up close
// together; CheckViolations reports those afterwards.
type Allocator struct {
	Grid Grid
	// Order is the candidate sequence used for first-fit tie breaking. It must
	// be a permutation of Grid.Seats(); nil means row-major order.
	Order []Seat
	Pairs []Pair
	// StepBudget caps the number of seat inspections; zero disables the cap.
	StepBudget int
}

// Result is the outcome of a successful allocation.
type Result struct {
	Assignment       Assignment
	PreferenceMisses []PreferenceMiss
	Steps            int
}

// Allocate runs the greedy pass. It fails without a partial result when the
// roster does not fit or a student has no eligible seat left.
func (a *Allocator) Allocate(students []Student) (*Result, error) {
	if err := a.Grid.Validate(); err != nil {
		return nil, err
	}
	if len(students) > a.Grid.Capacity() {
		return nil, &CapacityExceededError{Students: len(students), Seats: a.Grid.Capacity()}
	}
	order := a.Order
	if order == nil {
		order = a.Grid.Seats()
	} else if err := a.Grid.validateOrder(order); err != nil {
		return nil, err
	}
	if err := uniqueIDs(students); err != nil {
		return nil, err
	}

	state := newAllocatorState(a.Grid, order, a.Pairs, a.StepBudget)
	for _, student := range students {
		if err := state.seat(student); err != nil {
			return nil, err
		}
	}
	return &Result{
		Assignment:       state.assignment,
		PreferenceMisses: state.misses,
		Steps:            state.steps,
	}, nil
}

type allocatorState struct {
	grid       Grid
	order      []Seat
	pairs      []Pair
	budget     int
	steps      int
	used       SeatSet
	assignment Assignment
	misses     []PreferenceMiss
}

func newAllocatorState(grid Grid, order []Seat, pairs []Pair, budget int) *allocatorState {
	return &allocatorState{
		grid:       grid,
		order:      order,
		pairs:      pairs,
		budget:     budget,
		used:       make(SeatSet, len(order)),
		assignment: make(Assignment, len(order)),
	}
}

func (s *allocatorState) seat(student Student) error {
	forbidden := ForbiddenSeats(s.grid, student, s.assignment, s.pairs)

	var (
		firstRemaining *Seat
		firstPreferred *Seat
	)
	for i := range s.order {
		s.steps++
		if s.budget > 0 && s.steps > s.budget {
			return &BudgetExceededError{Budget: s.budget, StudentID: student.ID}
		}
		candidate := s.order[i]
		if s.used.Has(candidate) || forbidden.Has(candidate) {
			continue
		}
		if firstRemaining == nil {
			firstRemaining = &s.order[i]
		}
		if s.matchesPreference(student, candidate) {
			firstPreferred = &s.order[i]
			break
		}
	}

	var chosen Seat
	switch {
	case firstPreferred != nil:
		chosen = *firstPreferred
	case firstRemaining != nil:
		chosen = *firstRemaining
		if wanted, ok := wantedHalf(student); ok {
			s.misses = append(s.misses, PreferenceMiss{StudentID: student.ID, Wanted: wanted, Seat: chosen})
		}
	default:
		return &AllocationExhaustedError{StudentID: student.ID, Assigned: len(s.assignment), Forbidden: len(forbidden)}
	}

	s.assignment[student.ID] = chosen
	s.used[chosen] = struct{}{}
	return nil
}

func (s *allocatorState) matchesPreference(student Student, seat Seat) bool {
	if PrefersFront(student) && !s.grid.IsFrontRow(seat.Row) {
		return false
	}
	if PrefersBack(student) && !s.grid.IsBackRow(seat.Row) {
		return false
	}
	return true
}

func wantedHalf(student Student) (Tag, bool) {
	switch {
	case PrefersFront(student):
		return TagVision, true
	case PrefersBack(student):
		return TagHeight, true
	}
	return "", false
}

func uniqueIDs(students []Student) error {
	seen := make(map[int]struct{}, len(students))
	for _, s := range students {
		if _, ok := seen[s.ID]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicateStudent, s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}
