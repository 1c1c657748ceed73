package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/seating-api/internal/dto"
	"github.com/noah-isme/seating-api/internal/models"
	"github.com/noah-isme/seating-api/internal/roster"
	"github.com/noah-isme/seating-api/internal/seating"
	appErrors "github.com/noah-isme/seating-api/pkg/errors"
)

type seatingPlanStore interface {
	Create(ctx context.Context, plan *models.SeatingPlan, seats []models.SeatingPlanSeat) error
	FindByID(ctx context.Context, id string) (*models.SeatingPlan, error)
	ListSeats(ctx context.Context, planID string) ([]models.SeatingPlanSeat, error)
	List(ctx context.Context, filter models.SeatingPlanFilter) ([]models.SeatingPlan, int, error)
	Delete(ctx context.Context, id string) error
}

// SeatingConfig bounds request sizes and the allocator's work.
type SeatingConfig struct {
	MaxRows     int
	MaxCols     int
	MaxStudents int
	StepBudget  int
	ProposalTTL time.Duration
}

// SeatingService generates seating proposals and manages saved plans.
type SeatingService struct {
	proposals ProposalStore
	plans     seatingPlanStore
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SeatingConfig
	now       func() time.Time
	newSeed   func() int64
}

// NewSeatingService wires the seating dependencies. plans may be nil when no
// database is configured, in which case plan operations are unavailable.
func NewSeatingService(proposals ProposalStore, plans seatingPlanStore, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg SeatingConfig) *SeatingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if proposals == nil {
		proposals = NewMemoryProposalStore(cfg.ProposalTTL)
	}
	return &SeatingService{
		proposals: proposals,
		plans:     plans,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		newSeed:   rand.Int63,
	}
}

// Generate runs the allocator for the request and stores the result as a proposal.
func (s *SeatingService) Generate(ctx context.Context, req dto.GenerateSeatingRequest) (*dto.SeatingProposalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seating payload")
	}
	if err := s.checkLimits(req.Rows, req.Cols, len(req.Students)); err != nil {
		return nil, err
	}

	proposal := &SeatingProposal{
		ClassID:  req.ClassID,
		Grid:     seating.Grid{Rows: req.Rows, Cols: req.Cols},
		Students: toStudents(req.Students),
		Pairs:    toPairs(req.Pairs),
		Order:    toSeats(req.Order),
		Seed:     req.Seed,
	}
	if proposal.Order == nil && proposal.Seed == nil {
		seed := s.newSeed()
		proposal.Seed = &seed
	}
	if err := s.allocate(proposal); err != nil {
		return nil, err
	}
	if err := s.proposals.Save(ctx, proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store seating proposal")
	}
	return s.proposalResponse(proposal), nil
}

// Regenerate reruns a stored proposal's roster with another seed and stores the result as a new proposal.
func (s *SeatingService) Regenerate(ctx context.Context, id string, req dto.RegenerateSeatingRequest) (*dto.SeatingProposalResponse, error) {
	previous, err := s.loadProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	seed := s.newSeed()
	if req.Seed != nil {
		seed = *req.Seed
	}
	proposal := &SeatingProposal{
		ClassID:  previous.ClassID,
		Grid:     previous.Grid,
		Students: previous.Students,
		Pairs:    previous.Pairs,
		Seed:     &seed,
	}
	if err := s.allocate(proposal); err != nil {
		return nil, err
	}
	if err := s.proposals.Save(ctx, proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store seating proposal")
	}
	return s.proposalResponse(proposal), nil
}

// GetProposal returns a stored, unexpired proposal.
func (s *SeatingService) GetProposal(ctx context.Context, id string) (*dto.SeatingProposalResponse, error) {
	proposal, err := s.loadProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.proposalResponse(proposal), nil
}

// ImportRoster parses an uploaded CSV or XLSX class list.
func (s *SeatingService) ImportRoster(_ context.Context, filename string, r io.Reader) (*dto.RosterImportResponse, error) {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	parsed, err := roster.Parse(filename, r)
	if err != nil {
		s.metrics.RecordRosterImport(format, false)
		s.logger.Info("roster import rejected", zap.String("file", filename), zap.Error(err))
		return nil, mapRosterError(err)
	}
	if err := s.checkStudents(len(parsed.Students)); err != nil {
		s.metrics.RecordRosterImport(format, false)
		return nil, err
	}
	s.metrics.RecordRosterImport(format, true)

	resp := &dto.RosterImportResponse{
		Students: make([]dto.SeatingStudent, 0, len(parsed.Students)),
		Pairs:    make([]dto.SeparationPair, 0, len(parsed.Pairs)),
	}
	for _, st := range parsed.Students {
		resp.Students = append(resp.Students, dto.SeatingStudent{ID: st.ID, Gender: string(st.Gender), Special: tagStrings(st.Special)})
	}
	for _, p := range parsed.Pairs {
		resp.Pairs = append(resp.Pairs, dto.SeparationPair{A: p.A, B: p.B})
	}
	return resp, nil
}

func (s *SeatingService) loadProposal(ctx context.Context, id string) (*SeatingProposal, error) {
	proposal, err := s.proposals.Get(ctx, id)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seating proposal")
	}
	return proposal, nil
}

func (s *SeatingService) checkLimits(rows, cols, students int) error {
	if s.cfg.MaxRows > 0 && rows > s.cfg.MaxRows {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("rows must not exceed %d", s.cfg.MaxRows))
	}
	if s.cfg.MaxCols > 0 && cols > s.cfg.MaxCols {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("cols must not exceed %d", s.cfg.MaxCols))
	}
	return s.checkStudents(students)
}

func (s *SeatingService) checkStudents(students int) error {
	if s.cfg.MaxStudents > 0 && students > s.cfg.MaxStudents {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d students are supported", s.cfg.MaxStudents))
	}
	return nil
}

// allocate runs the allocator for p and fills in its plan, id and timestamp.
func (s *SeatingService) allocate(p *SeatingProposal) error {
	start := time.Now()
	plan, err := seating.Run(seating.Request{
		Grid:       p.Grid,
		Students:   p.Students,
		Pairs:      p.Pairs,
		Order:      p.Order,
		Seed:       p.Seed,
		StepBudget: s.cfg.StepBudget,
	})
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.ObserveAllocation(allocationOutcome(err), elapsed, 0, 0)
		s.logger.Info("seat allocation failed",
			zap.String("class_id", p.ClassID),
			zap.Int("rows", p.Grid.Rows),
			zap.Int("cols", p.Grid.Cols),
			zap.Int("students", len(p.Students)),
			zap.Error(err))
		return mapSeatingError(err)
	}
	s.metrics.ObserveAllocation(OutcomeOK, elapsed, plan.Steps, len(plan.PreferenceMisses))
	s.metrics.ObserveViolations(len(plan.Violations))

	p.ID = uuid.NewString()
	p.Pairs = plan.Pairs
	p.Plan = plan
	p.CreatedAt = s.now().UTC()
	s.logger.Debug("seat allocation finished",
		zap.String("proposal_id", p.ID),
		zap.Int("steps", plan.Steps),
		zap.Int("preference_misses", len(plan.PreferenceMisses)),
		zap.Duration("elapsed", elapsed))
	return nil
}

func (s *SeatingService) proposalResponse(p *SeatingProposal) *dto.SeatingProposalResponse {
	return &dto.SeatingProposalResponse{
		ProposalID:       p.ID,
		ClassID:          p.ClassID,
		Rows:             p.Grid.Rows,
		Cols:             p.Grid.Cols,
		Seed:             p.Seed,
		Assignments:      assignmentsFor(p.Students, p.Plan.Assignment),
		Chart:            p.Plan.Chart,
		Violations:       p.Plan.Violations,
		PreferenceMisses: p.Plan.PreferenceMisses,
		Steps:            p.Plan.Steps,
		ExpiresAt:        p.CreatedAt.Add(s.cfg.ProposalTTL),
	}
}

// assignmentsFor lists seated students in id order.
func assignmentsFor(students []seating.Student, assignment seating.Assignment) []dto.SeatAssignment {
	out := make([]dto.SeatAssignment, 0, len(assignment))
	for _, st := range students {
		seat, ok := assignment[st.ID]
		if !ok {
			continue
		}
		out = append(out, dto.SeatAssignment{
			StudentID: st.ID,
			Gender:    string(st.Gender),
			Special:   tagStrings(st.Special),
			Row:       seat.Row,
			Col:       seat.Col,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

func allocationOutcome(err error) string {
	switch {
	case errors.Is(err, seating.ErrCapacityExceeded):
		return OutcomeCapacityExceeded
	case errors.Is(err, seating.ErrAllocationExhausted):
		return OutcomeAllocationExhausted
	case errors.Is(err, seating.ErrBudgetExceeded):
		return OutcomeBudgetExceeded
	default:
		return OutcomeInvalid
	}
}

func mapSeatingError(err error) error {
	var capacity *seating.CapacityExceededError
	var exhausted *seating.AllocationExhaustedError
	var budget *seating.BudgetExceededError
	switch {
	case errors.As(err, &capacity):
		return appErrors.WithDetails(appErrors.ErrCapacityExceeded, capacity.Error(), map[string]int{
			"students": capacity.Students,
			"seats":    capacity.Seats,
		})
	case errors.As(err, &exhausted):
		return appErrors.WithDetails(appErrors.ErrAllocationExhausted, exhausted.Error(), map[string]int{
			"studentId": exhausted.StudentID,
			"assigned":  exhausted.Assigned,
			"forbidden": exhausted.Forbidden,
		})
	case errors.As(err, &budget):
		return appErrors.WithDetails(appErrors.ErrStepBudgetExceeded, budget.Error(), map[string]int{
			"budget":    budget.Budget,
			"studentId": budget.StudentID,
		})
	case errors.Is(err, seating.ErrInvalidGrid),
		errors.Is(err, seating.ErrInvalidSeatOrder),
		errors.Is(err, seating.ErrInvalidPair),
		errors.Is(err, seating.ErrDuplicateStudent):
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "seat allocation failed")
	}
}

func mapRosterError(err error) error {
	var malformed *roster.MalformedRosterError
	switch {
	case errors.As(err, &malformed):
		return appErrors.WithDetails(appErrors.ErrMalformedRoster, malformed.Error(), malformed.Rows)
	case errors.Is(err, roster.ErrUnsupportedFormat),
		errors.Is(err, roster.ErrEmptyRoster),
		errors.Is(err, roster.ErrMissingColumn):
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	default:
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable roster file")
	}
}

func toStudents(in []dto.SeatingStudent) []seating.Student {
	out := make([]seating.Student, 0, len(in))
	for _, st := range in {
		student := seating.Student{ID: st.ID, Gender: seating.Gender(st.Gender)}
		for _, tag := range st.Special {
			student.Special = append(student.Special, seating.Tag(tag))
		}
		out = append(out, student)
	}
	return out
}

func toPairs(in []dto.SeparationPair) []seating.Pair {
	out := make([]seating.Pair, 0, len(in))
	for _, p := range in {
		out = append(out, seating.Pair{A: p.A, B: p.B})
	}
	return out
}

func toSeats(in []dto.SeatPosition) []seating.Seat {
	if len(in) == 0 {
		return nil
	}
	out := make([]seating.Seat, 0, len(in))
	for _, p := range in {
		out = append(out, seating.Seat{Row: p.Row, Col: p.Col})
	}
	return out
}

func tagStrings(tags []seating.Tag) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}
