package seating

import "fmt"

// Pair is an unordered separation constraint between two students.
type Pair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// NewPair returns the canonical form of (a, b) with the smaller id first.
func NewPair(a, b int) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Involves reports whether id is one of the pair members.
func (p Pair) Involves(id int) bool {
	return p.A == id || p.B == id
}

// Partner returns the other member of the pair.
func (p Pair) Partner(id int) (int, bool) {
	switch id {
	case p.A:
		return p.B, true
	case p.B:
		return p.A, true
	}
	return 0, false
}

func (p Pair) String() string {
	return fmt.Sprintf("%d-%d", p.A, p.B)
}

// NormalizePairs canonicalises pairs and drops duplicates, keeping first-seen order.
// Reversed pairs count as duplicates. Self pairs are rejected.
func NormalizePairs(pairs ...[]Pair) ([]Pair, error) {
	var result []Pair
	seen := make(map[Pair]struct{})
	for _, group := range pairs {
		for _, p := range group {
			if p.A == p.B {
				return nil, fmt.Errorf("%w: student %d paired with itself", ErrInvalidPair, p.A)
			}
			canonical := NewPair(p.A, p.B)
			if _, ok := seen[canonical]; ok {
				continue
			}
			seen[canonical] = struct{}{}
			result = append(result, canonical)
		}
	}
	return result, nil
}

// ValidatePairs ensures every pair references a student on the roster.
func ValidatePairs(students []Student, pairs []Pair) error {
	known := make(map[int]struct{}, len(students))
	for _, s := range students {
		known[s.ID] = struct{}{}
	}
	for _, p := range pairs {
		if p.A == p.B {
			return fmt.Errorf("%w: student %d paired with itself", ErrInvalidPair, p.A)
		}
		for _, id := range []int{p.A, p.B} {
			if _, ok := known[id]; !ok {
				return fmt.Errorf("%w: pair %s references unknown student %d", ErrInvalidPair, p, id)
			}
		}
	}
	return nil
}
