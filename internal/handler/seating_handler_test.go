package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/seating-api/internal/dto"
	"github.com/noah-isme/seating-api/internal/middleware"
	"github.com/noah-isme/seating-api/internal/models"
	appErrors "github.com/noah-isme/seating-api/pkg/errors"
)

type seatingServiceMock struct {
	generateReq   dto.GenerateSeatingRequest
	regenerateID  string
	regenerateReq dto.RegenerateSeatingRequest
	proposal      *dto.SeatingProposalResponse
	proposalErr   error
	rosterName    string
	rosterBody    string
	roster        *dto.RosterImportResponse
	rosterErr     error
	saveActor     string
	plan          *dto.SeatingPlanResponse
	planErr       error
	listQuery     dto.SeatingPlanQuery
	plans         []models.SeatingPlan
	deleteErr     error
}

func (m *seatingServiceMock) Generate(ctx context.Context, req dto.GenerateSeatingRequest) (*dto.SeatingProposalResponse, error) {
	m.generateReq = req
	return m.proposal, m.proposalErr
}

func (m *seatingServiceMock) Regenerate(ctx context.Context, id string, req dto.RegenerateSeatingRequest) (*dto.SeatingProposalResponse, error) {
	m.regenerateID = id
	m.regenerateReq = req
	return m.proposal, m.proposalErr
}

func (m *seatingServiceMock) GetProposal(ctx context.Context, id string) (*dto.SeatingProposalResponse, error) {
	return m.proposal, m.proposalErr
}

func (m *seatingServiceMock) ImportRoster(ctx context.Context, filename string, r io.Reader) (*dto.RosterImportResponse, error) {
	m.rosterName = filename
	body, _ := io.ReadAll(r)
	m.rosterBody = string(body)
	return m.roster, m.rosterErr
}

func (m *seatingServiceMock) SavePlan(ctx context.Context, req dto.SaveSeatingPlanRequest, actorID string) (*dto.SeatingPlanResponse, error) {
	m.saveActor = actorID
	return m.plan, m.planErr
}

func (m *seatingServiceMock) ListPlans(ctx context.Context, query dto.SeatingPlanQuery) ([]models.SeatingPlan, *models.Pagination, error) {
	m.listQuery = query
	return m.plans, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.plans)}, nil
}

func (m *seatingServiceMock) GetPlan(ctx context.Context, id string) (*dto.SeatingPlanResponse, error) {
	return m.plan, m.planErr
}

func (m *seatingServiceMock) DeletePlan(ctx context.Context, id string) error {
	return m.deleteErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Error map[string]interface{} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestSeatingHandlerGenerate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	seed := int64(5)
	mockSvc := &seatingServiceMock{proposal: &dto.SeatingProposalResponse{ProposalID: "p-1", Seed: &seed}}
	handler := NewSeatingHandler(mockSvc)

	payload, _ := json.Marshal(dto.GenerateSeatingRequest{
		Rows:     2,
		Cols:     2,
		Students: []dto.SeatingStudent{{ID: 1, Gender: "M"}},
	})
	c, w := newGinContext(http.MethodPost, "/seating/generate", payload)

	handler.Generate(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 2, mockSvc.generateReq.Rows)
	assert.Contains(t, w.Body.String(), `"proposalId":"p-1"`)
}

func TestSeatingHandlerGenerateMapsErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &seatingServiceMock{proposalErr: appErrors.WithDetails(appErrors.ErrCapacityExceeded, "too many", map[string]int{"students": 5, "seats": 4})}
	handler := NewSeatingHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/seating/generate", []byte(`{"rows":2,"cols":2,"students":[{"id":1,"gender":"M"}]}`))
	handler.Generate(c)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CAPACITY_EXCEEDED", decodeError(t, w)["code"])

	c, w = newGinContext(http.MethodPost, "/seating/generate", []byte(`{`))
	handler.Generate(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSeatingHandlerRegenerateAcceptsEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &seatingServiceMock{proposal: &dto.SeatingProposalResponse{ProposalID: "p-2"}}
	handler := NewSeatingHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/seating/proposals/p-1/regenerate", nil)
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}
	handler.Regenerate(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "p-1", mockSvc.regenerateID)
	assert.Nil(t, mockSvc.regenerateReq.Seed)

	c, w = newGinContext(http.MethodPost, "/seating/proposals/p-1/regenerate", []byte(`{"seed":11}`))
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}
	handler.Regenerate(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, mockSvc.regenerateReq.Seed)
	assert.Equal(t, int64(11), *mockSvc.regenerateReq.Seed)
}

func TestSeatingHandlerGetProposalNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSeatingHandler(&seatingServiceMock{proposalErr: appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")})

	c, w := newGinContext(http.MethodGet, "/seating/proposals/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	handler.GetProposal(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestSeatingHandlerImportRoster(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &seatingServiceMock{roster: &dto.RosterImportResponse{Students: []dto.SeatingStudent{{ID: 1, Gender: "F"}}}}
	handler := NewSeatingHandler(mockSvc)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "7a.csv")
	require.NoError(t, err)
	_, _ = part.Write([]byte("number,gender\n1,F\n"))
	require.NoError(t, writer.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/seating/roster/import", &body)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())

	handler.ImportRoster(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7a.csv", mockSvc.rosterName)
	assert.Equal(t, "number,gender\n1,F\n", mockSvc.rosterBody)
}

func TestSeatingHandlerImportRosterRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSeatingHandler(&seatingServiceMock{})

	c, w := newGinContext(http.MethodPost, "/seating/roster/import", nil)
	handler.ImportRoster(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSeatingHandlerSavePlanUsesActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &seatingServiceMock{plan: &dto.SeatingPlanResponse{Plan: models.SeatingPlan{ID: "plan-1"}}}
	handler := NewSeatingHandler(mockSvc)
	payload := []byte(`{"proposalId":"p-1","classId":"7A","name":"Term 1"}`)

	c, w := newGinContext(http.MethodPost, "/seating/plans", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
	handler.SavePlan(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "teacher-1", mockSvc.saveActor)

	c, w = newGinContext(http.MethodPost, "/seating/plans", payload)
	handler.SavePlan(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, anonymousActor, mockSvc.saveActor)
}

func TestSeatingHandlerSavePlanConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSeatingHandler(&seatingServiceMock{planErr: appErrors.ErrProposalViolations})

	c, w := newGinContext(http.MethodPost, "/seating/plans", []byte(`{"proposalId":"p-1","classId":"7A","name":"x"}`))
	handler.SavePlan(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PROPOSAL_HAS_VIOLATIONS", decodeError(t, w)["code"])
}

func TestSeatingHandlerListPlans(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &seatingServiceMock{plans: []models.SeatingPlan{{ID: "a"}}}
	handler := NewSeatingHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/seating/plans?classId=7A&page=2", nil)
	handler.ListPlans(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7A", mockSvc.listQuery.ClassID)
	assert.Equal(t, 2, mockSvc.listQuery.Page)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}

func TestSeatingHandlerGetAndDeletePlan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSeatingHandler(&seatingServiceMock{plan: &dto.SeatingPlanResponse{Plan: models.SeatingPlan{ID: "plan-1"}}})

	c, w := newGinContext(http.MethodGet, "/seating/plans/plan-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "plan-1"}}
	handler.GetPlan(c)
	require.Equal(t, http.StatusOK, w.Code)

	r := gin.New()
	r.DELETE("/seating/plans/:id", handler.DeletePlan)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/seating/plans/plan-1", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}
