package seating

// CheckViolations reports every pair whose members are both seated too close
// together, in pair order. Pairs with an unseated member are skipped.
func CheckViolations(assignment Assignment, pairs []Pair) []Violation {
	violations := make([]Violation, 0)
	for _, p := range pairs {
		seatA, okA := assignment[p.A]
		seatB, okB := assignment[p.B]
		if !okA || !okB {
			continue
		}
		if TooClose(seatA, seatB) {
			violations = append(violations, Violation{Pair: p, SeatA: seatA, SeatB: seatB})
		}
	}
	return violations
}
