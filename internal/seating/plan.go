package seating

// Request bundles everything one planning run needs.
type Request struct {
	Grid     Grid
	Students []Student
	Pairs    []Pair
	// Order fixes the candidate seat sequence. When nil, Seed decides it.
	Order []Seat
	// Seed shuffles the seats when Order is nil; nil keeps row-major order.
	Seed       *int64
	StepBudget int
}

// Plan is the full output of a run: the seats, the rendered chart and the
// constraints that could not be honoured.
type Plan struct {
	Grid             Grid             `json:"grid"`
	Order            []Seat           `json:"order"`
	Assignment       Assignment       `json:"assignment"`
	Chart            [][]string       `json:"chart"`
	Pairs            []Pair           `json:"pairs"`
	Violations       []Violation      `json:"violations"`
	PreferenceMisses []PreferenceMiss `json:"preferenceMisses"`
	Steps            int              `json:"steps"`
}

// Run normalises the pairs, allocates seats and checks the result.
func Run(req Request) (*Plan, error) {
	if err := req.Grid.Validate(); err != nil {
		return nil, err
	}
	pairs, err := NormalizePairs(req.Pairs)
	if err != nil {
		return nil, err
	}
	if err := ValidatePairs(req.Students, pairs); err != nil {
		return nil, err
	}

	order := req.Order
	if order == nil {
		if req.Seed != nil {
			order = req.Grid.ShuffledSeats(*req.Seed)
		} else {
			order = req.Grid.Seats()
		}
	}

	allocator := &Allocator{Grid: req.Grid, Order: order, Pairs: pairs, StepBudget: req.StepBudget}
	result, err := allocator.Allocate(req.Students)
	if err != nil {
		return nil, err
	}

	misses := result.PreferenceMisses
	if misses == nil {
		misses = []PreferenceMiss{}
	}
	return &Plan{
		Grid:             req.Grid,
		Order:            order,
		Assignment:       result.Assignment,
		Chart:            BuildChart(req.Grid, req.Students, result.Assignment),
		Pairs:            pairs,
		Violations:       CheckViolations(result.Assignment, pairs),
		PreferenceMisses: misses,
		Steps:            result.Steps,
	}, nil
}
