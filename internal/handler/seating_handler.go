package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/seating-api/internal/dto"
	"github.com/noah-isme/seating-api/internal/middleware"
	"github.com/noah-isme/seating-api/internal/models"
	appErrors "github.com/noah-isme/seating-api/pkg/errors"
	"github.com/noah-isme/seating-api/pkg/response"
)

const maxRosterUploadBytes = 5 << 20

type seatingService interface {
	Generate(ctx context.Context, req dto.GenerateSeatingRequest) (*dto.SeatingProposalResponse, error)
	Regenerate(ctx context.Context, id string, req dto.RegenerateSeatingRequest) (*dto.SeatingProposalResponse, error)
	GetProposal(ctx context.Context, id string) (*dto.SeatingProposalResponse, error)
	ImportRoster(ctx context.Context, filename string, r io.Reader) (*dto.RosterImportResponse, error)
	SavePlan(ctx context.Context, req dto.SaveSeatingPlanRequest, actorID string) (*dto.SeatingPlanResponse, error)
	ListPlans(ctx context.Context, query dto.SeatingPlanQuery) ([]models.SeatingPlan, *models.Pagination, error)
	GetPlan(ctx context.Context, id string) (*dto.SeatingPlanResponse, error)
	DeletePlan(ctx context.Context, id string) error
}

// SeatingHandler exposes seat generation, roster import and saved plans.
type SeatingHandler struct {
	service seatingService
}

// NewSeatingHandler constructs the handler.
func NewSeatingHandler(service seatingService) *SeatingHandler {
	return &SeatingHandler{service: service}
}

// Generate godoc
// @Summary Generate a seating proposal
// @Tags Seating
// @Accept json
// @Produce json
// @Param payload body dto.GenerateSeatingRequest true "Grid, roster and separation pairs"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /seating/generate [post]
func (h *SeatingHandler) Generate(c *gin.Context) {
	var req dto.GenerateSeatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil, middleware.ExtractMeta(c))
}

// Regenerate godoc
// @Summary Re-run a proposal with another seed
// @Tags Seating
// @Accept json
// @Produce json
// @Param id path string true "Proposal ID"
// @Param payload body dto.RegenerateSeatingRequest false "Optional seed"
// @Success 201 {object} response.Envelope
// @Router /seating/proposals/{id}/regenerate [post]
func (h *SeatingHandler) Regenerate(c *gin.Context) {
	var req dto.RegenerateSeatingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid regenerate payload"))
			return
		}
	}
	result, err := h.service.Regenerate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, result, nil, middleware.ExtractMeta(c))
}

// GetProposal godoc
// @Summary Get a seating proposal
// @Tags Seating
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /seating/proposals/{id} [get]
func (h *SeatingHandler) GetProposal(c *gin.Context) {
	result, err := h.service.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ImportRoster godoc
// @Summary Parse a CSV or XLSX class roster
// @Tags Seating
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Roster (.csv or .xlsx)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /seating/roster/import [post]
func (h *SeatingHandler) ImportRoster(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	if fileHeader.Size > maxRosterUploadBytes {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "roster file is too large"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	result, err := h.service.ImportRoster(c.Request.Context(), fileHeader.Filename, src)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "filename", fileHeader.Filename)
	middleware.SetMeta(c, "students", len(result.Students))
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// SavePlan godoc
// @Summary Save a proposal as a class seating plan
// @Tags Seating
// @Accept json
// @Produce json
// @Param payload body dto.SaveSeatingPlanRequest true "Proposal to save"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /seating/plans [post]
func (h *SeatingHandler) SavePlan(c *gin.Context) {
	var req dto.SaveSeatingPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid save payload"))
		return
	}
	actorID, _ := actorFromContext(c)
	result, err := h.service.SavePlan(c.Request.Context(), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListPlans godoc
// @Summary List saved seating plans
// @Tags Seating
// @Produce json
// @Param classId query string false "Class filter"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /seating/plans [get]
func (h *SeatingHandler) ListPlans(c *gin.Context) {
	var query dto.SeatingPlanQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	plans, pagination, err := h.service.ListPlans(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, pagination)
}

// GetPlan godoc
// @Summary Get a saved seating plan
// @Tags Seating
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /seating/plans/{id} [get]
func (h *SeatingHandler) GetPlan(c *gin.Context) {
	result, err := h.service.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DeletePlan godoc
// @Summary Delete a saved seating plan
// @Tags Seating
// @Param id path string true "Plan ID"
// @Success 204
// @Router /seating/plans/{id} [delete]
func (h *SeatingHandler) DeletePlan(c *gin.Context) {
	if err := h.service.DeletePlan(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
