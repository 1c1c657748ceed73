package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/seating-api/internal/dto"
	"github.com/noah-isme/seating-api/internal/models"
	"github.com/noah-isme/seating-api/internal/seating"
	appErrors "github.com/noah-isme/seating-api/pkg/errors"
)

var errPlanStorageDisabled = appErrors.Clone(appErrors.ErrPreconditionFailed, "seating plan storage is not configured")

// SavePlan persists a proposal as a named plan for a class and drops the proposal.
func (s *SeatingService) SavePlan(ctx context.Context, req dto.SaveSeatingPlanRequest, actorID string) (*dto.SeatingPlanResponse, error) {
	if s.plans == nil {
		return nil, errPlanStorageDisabled
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid seating plan payload")
	}
	proposal, err := s.loadProposal(ctx, req.ProposalID)
	if err != nil {
		return nil, err
	}
	if len(proposal.Plan.Violations) > 0 && !req.AllowViolations {
		return nil, appErrors.WithDetails(appErrors.ErrProposalViolations,
			fmt.Sprintf("proposal has %d separation violations", len(proposal.Plan.Violations)),
			proposal.Plan.Violations)
	}

	plan := &models.SeatingPlan{
		ClassID:        req.ClassID,
		Name:           strings.TrimSpace(req.Name),
		Rows:           proposal.Grid.Rows,
		Cols:           proposal.Grid.Cols,
		Seed:           proposal.Seed,
		Pairs:          toModelPairs(proposal.Pairs),
		ViolationCount: len(proposal.Plan.Violations),
		CreatedBy:      actorID,
	}
	seats := make([]models.SeatingPlanSeat, 0, len(proposal.Students))
	for _, a := range assignmentsFor(proposal.Students, proposal.Plan.Assignment) {
		seats = append(seats, models.SeatingPlanSeat{
			StudentID: a.StudentID,
			Gender:    a.Gender,
			Special:   strings.Join(a.Special, "/"),
			Row:       a.Row,
			Col:       a.Col,
		})
	}
	if err := s.plans.Create(ctx, plan, seats); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save seating plan")
	}
	if err := s.proposals.Delete(ctx, proposal.ID); err != nil {
		s.logger.Warn("failed to drop saved proposal", zap.String("proposal_id", proposal.ID), zap.Error(err))
	}
	s.logger.Info("seating plan saved", zap.String("plan_id", plan.ID), zap.String("class_id", plan.ClassID), zap.String("actor_id", actorID))
	return planResponse(plan, seats), nil
}

// ListPlans returns saved plans, optionally for one class.
func (s *SeatingService) ListPlans(ctx context.Context, query dto.SeatingPlanQuery) ([]models.SeatingPlan, *models.Pagination, error) {
	if s.plans == nil {
		return nil, nil, errPlanStorageDisabled
	}
	filter := models.SeatingPlanFilter{ClassID: query.ClassID, Page: query.Page, PageSize: query.PageSize}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	plans, total, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list seating plans")
	}
	if plans == nil {
		plans = []models.SeatingPlan{}
	}
	return plans, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// GetPlan loads a saved plan and re-checks its seats against the stored pairs.
func (s *SeatingService) GetPlan(ctx context.Context, id string) (*dto.SeatingPlanResponse, error) {
	plan, seats, err := s.loadPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	return planResponse(plan, seats), nil
}

// DeletePlan removes a saved plan.
func (s *SeatingService) DeletePlan(ctx context.Context, id string) error {
	if s.plans == nil {
		return errPlanStorageDisabled
	}
	if err := s.plans.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "seating plan not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete seating plan")
	}
	return nil
}

func (s *SeatingService) loadPlan(ctx context.Context, id string) (*models.SeatingPlan, []models.SeatingPlanSeat, error) {
	if s.plans == nil {
		return nil, nil, errPlanStorageDisabled
	}
	plan, err := s.plans.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "seating plan not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seating plan")
	}
	seats, err := s.plans.ListSeats(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load seating plan seats")
	}
	return plan, seats, nil
}

func planResponse(plan *models.SeatingPlan, seats []models.SeatingPlanSeat) *dto.SeatingPlanResponse {
	grid, students, assignment := planState(plan, seats)
	pairs := make([]seating.Pair, 0, len(plan.Pairs))
	for _, p := range plan.Pairs {
		pairs = append(pairs, seating.NewPair(p.A, p.B))
	}
	return &dto.SeatingPlanResponse{
		Plan:        *plan,
		Assignments: assignmentsFor(students, assignment),
		Chart:       seating.BuildChart(grid, students, assignment),
		Violations:  seating.CheckViolations(assignment, pairs),
	}
}

// planState rebuilds the allocator's view of a saved plan.
func planState(plan *models.SeatingPlan, seats []models.SeatingPlanSeat) (seating.Grid, []seating.Student, seating.Assignment) {
	grid := seating.Grid{Rows: plan.Rows, Cols: plan.Cols}
	students := make([]seating.Student, 0, len(seats))
	assignment := make(seating.Assignment, len(seats))
	for _, seat := range seats {
		st := seating.Student{ID: seat.StudentID, Gender: seating.Gender(seat.Gender)}
		for _, tag := range strings.Split(seat.Special, "/") {
			if tag = strings.TrimSpace(tag); tag != "" {
				st.Special = append(st.Special, seating.Tag(tag))
			}
		}
		students = append(students, st)
		assignment[seat.StudentID] = seating.Seat{Row: seat.Row, Col: seat.Col}
	}
	return grid, students, assignment
}

func toModelPairs(pairs []seating.Pair) models.SeparationPairs {
	out := make(models.SeparationPairs, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, models.SeparationPair{A: p.A, B: p.B})
	}
	return out
}
