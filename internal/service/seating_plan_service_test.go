package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/seating-api/internal/dto"
	"github.com/noah-isme/seating-api/internal/models"
	"github.com/noah-isme/seating-api/internal/seating"
	appErrors "github.com/noah-isme/seating-api/pkg/errors"
)

// storeViolatingProposal saves a proposal whose pair 1-2 sits side by side.
func storeViolatingProposal(t *testing.T, store ProposalStore) *SeatingProposal {
	t.Helper()
	students := []seating.Student{{ID: 1, Gender: seating.GenderMale}, {ID: 2, Gender: seating.GenderFemale}}
	pairs := []seating.Pair{{A: 1, B: 2}}
	assignment := seating.Assignment{1: {Row: 0, Col: 0}, 2: {Row: 0, Col: 1}}
	grid := seating.Grid{Rows: 1, Cols: 3}
	proposal := &SeatingProposal{
		ID:       "proposal-violating",
		ClassID:  "8C",
		Grid:     grid,
		Students: students,
		Pairs:    pairs,
		Plan: &seating.Plan{
			Grid:       grid,
			Assignment: assignment,
			Pairs:      pairs,
			Chart:      seating.BuildChart(grid, students, assignment),
			Violations: seating.CheckViolations(assignment, pairs),
		},
		CreatedAt: fixedNow,
	}
	require.Len(t, proposal.Plan.Violations, 1)
	require.NoError(t, store.Save(context.Background(), proposal))
	return proposal
}

func TestSeatingServiceSavePlan(t *testing.T) {
	plans := newPlanStoreStub()
	svc, store := newSeatingServiceForTest(t, plans)
	proposal, err := svc.Generate(context.Background(), dto.GenerateSeatingRequest{
		ClassID:  "7A",
		Rows:     3,
		Cols:     3,
		Students: rosterOf(5),
		Pairs:    []dto.SeparationPair{{A: 1, B: 4}},
	})
	require.NoError(t, err)

	resp, err := svc.SavePlan(context.Background(), dto.SaveSeatingPlanRequest{
		ProposalID: proposal.ProposalID,
		ClassID:    "7A",
		Name:       "  Term 1  ",
	}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, "plan-1", resp.Plan.ID)
	assert.Equal(t, "Term 1", resp.Plan.Name)
	assert.Equal(t, "teacher-1", resp.Plan.CreatedBy)
	assert.Equal(t, models.SeparationPairs{{A: 1, B: 4}}, resp.Plan.Pairs)
	assert.Equal(t, proposal.Assignments, resp.Assignments)
	assert.Equal(t, proposal.Chart, resp.Chart)
	assert.Empty(t, resp.Violations)
	assert.Len(t, plans.seats["plan-1"], 5)

	_, err = store.Get(context.Background(), proposal.ProposalID)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

func TestSeatingServiceSavePlanRejectsViolations(t *testing.T) {
	plans := newPlanStoreStub()
	svc, store := newSeatingServiceForTest(t, plans)
	proposal := storeViolatingProposal(t, store)

	_, err := svc.SavePlan(context.Background(), dto.SaveSeatingPlanRequest{ProposalID: proposal.ID, ClassID: "8C", Name: "draft"}, "teacher-1")
	appErr := requireAppError(t, err, appErrors.ErrProposalViolations)
	assert.Len(t, appErr.Details, 1)
	assert.Empty(t, plans.plans)

	resp, err := svc.SavePlan(context.Background(), dto.SaveSeatingPlanRequest{
		ProposalID:      proposal.ID,
		ClassID:         "8C",
		Name:            "draft",
		AllowViolations: true,
	}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Plan.ViolationCount)
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, seating.Pair{A: 1, B: 2}, resp.Violations[0].Pair)
}

func TestSeatingServicePlansRequireStorage(t *testing.T) {
	svc, _ := newSeatingServiceForTest(t, nil)

	_, err := svc.SavePlan(context.Background(), dto.SaveSeatingPlanRequest{ProposalID: "p", ClassID: "c", Name: "n"}, "u")
	requireAppError(t, err, appErrors.ErrPreconditionFailed)
	_, _, err = svc.ListPlans(context.Background(), dto.SeatingPlanQuery{})
	requireAppError(t, err, appErrors.ErrPreconditionFailed)
	_, err = svc.GetPlan(context.Background(), "p")
	requireAppError(t, err, appErrors.ErrPreconditionFailed)
	err = svc.DeletePlan(context.Background(), "p")
	requireAppError(t, err, appErrors.ErrPreconditionFailed)
}

func TestSeatingServiceGetPlanRechecksViolations(t *testing.T) {
	plans := newPlanStoreStub()
	plans.plans["plan-9"] = &models.SeatingPlan{
		ID: "plan-9", ClassID: "9A", Name: "exam", Rows: 2, Cols: 2,
		Pairs: models.SeparationPairs{{A: 1, B: 2}},
	}
	plans.seats["plan-9"] = []models.SeatingPlanSeat{
		{PlanID: "plan-9", StudentID: 2, Gender: "F", Special: "vision/hearing", Row: 0, Col: 0},
		{PlanID: "plan-9", StudentID: 1, Gender: "M", Row: 1, Col: 1},
	}
	svc, _ := newSeatingServiceForTest(t, plans)

	resp, err := svc.GetPlan(context.Background(), "plan-9")
	require.NoError(t, err)
	require.Len(t, resp.Assignments, 2)
	assert.Equal(t, 1, resp.Assignments[0].StudentID)
	assert.Equal(t, []string{"vision", "hearing"}, resp.Assignments[1].Special)
	assert.Equal(t, [][]string{{"F2", ""}, {"", "M1"}}, resp.Chart)
	require.Len(t, resp.Violations, 1)

	_, err = svc.GetPlan(context.Background(), "missing")
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestSeatingServiceListAndDeletePlans(t *testing.T) {
	plans := newPlanStoreStub()
	plans.plans["a"] = &models.SeatingPlan{ID: "a", ClassID: "7A"}
	plans.plans["b"] = &models.SeatingPlan{ID: "b", ClassID: "7B"}
	svc, _ := newSeatingServiceForTest(t, plans)

	list, pagination, err := svc.ListPlans(context.Background(), dto.SeatingPlanQuery{ClassID: "7A", PageSize: 500})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.TotalCount)

	require.NoError(t, svc.DeletePlan(context.Background(), "a"))
	err = svc.DeletePlan(context.Background(), "a")
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestSeatingServiceSavePlanStoreFailure(t *testing.T) {
	plans := newPlanStoreStub()
	plans.createErr = errors.New("db down")
	svc, store := newSeatingServiceForTest(t, plans)
	proposal, err := svc.Generate(context.Background(), dto.GenerateSeatingRequest{Rows: 2, Cols: 2, Students: rosterOf(2)})
	require.NoError(t, err)

	_, err = svc.SavePlan(context.Background(), dto.SaveSeatingPlanRequest{ProposalID: proposal.ProposalID, ClassID: "7A", Name: "n"}, "u")
	requireAppError(t, err, appErrors.ErrInternal)

	_, err = store.Get(context.Background(), proposal.ProposalID)
	assert.NoError(t, err)
}
