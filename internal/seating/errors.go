package seating

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGrid         = errors.New("invalid grid")
	ErrInvalidSeatOrder    = errors.New("invalid seat order")
	ErrInvalidPair         = errors.New("invalid separation pair")
	ErrDuplicateStudent    = errors.New("duplicate student id")
	ErrCapacityExceeded    = errors.New("capacity exceeded")
	ErrAllocationExhausted = errors.New("allocation exhausted")
	ErrBudgetExceeded      = errors.New("step budget exceeded")
)

// CapacityExceededError is returned before allocation when the roster does not fit.
type CapacityExceededError struct {
	Students int
	Seats    int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity exceeded: %d students for %d seats", e.Students, e.Seats)
}

// Is matches ErrCapacityExceeded.
func (e *CapacityExceededError) Is(target error) bool {
	return target == ErrCapacityExceeded
}

// AllocationExhaustedError names the student left without an eligible seat.
type AllocationExhaustedError struct {
	StudentID int
	Assigned  int
	Forbidden int
}

func (e *AllocationExhaustedError) Error() string {
	return fmt.Sprintf("allocation exhausted: no eligible seat for student %d (%d already seated, %d seats forbidden)", e.StudentID, e.Assigned, e.Forbidden)
}

// Is matches ErrAllocationExhausted.
func (e *AllocationExhaustedError) Is(target error) bool {
	return target == ErrAllocationExhausted
}

// BudgetExceededError is returned when a run spends more steps than allowed.
type BudgetExceededError struct {
	Budget    int
	StudentID int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("step budget of %d exceeded while seating student %d", e.Budget, e.StudentID)
}

// Is matches ErrBudgetExceeded.
func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}
