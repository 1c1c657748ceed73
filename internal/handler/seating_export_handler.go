package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/seating-api/internal/dto"
	"github.com/noah-isme/seating-api/internal/models"
	"github.com/noah-isme/seating-api/internal/service"
	appErrors "github.com/noah-isme/seating-api/pkg/errors"
	"github.com/noah-isme/seating-api/pkg/export"
	"github.com/noah-isme/seating-api/pkg/response"
)

type seatingExportService interface {
	CreateJob(ctx context.Context, planID string, req dto.CreateSeatingExportRequest, actorID string) (*dto.SeatingExportResponse, error)
	GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.SeatingExportResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// SeatingExportHandler exposes asynchronous chart exports.
type SeatingExportHandler struct {
	service seatingExportService
}

// NewSeatingExportHandler constructs the handler.
func NewSeatingExportHandler(service seatingExportService) *SeatingExportHandler {
	return &SeatingExportHandler{service: service}
}

// CreateExport godoc
// @Summary Queue a seating chart export
// @Tags Seating Exports
// @Accept json
// @Produce json
// @Param id path string true "Plan ID"
// @Param payload body dto.CreateSeatingExportRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Router /seating/plans/{id}/exports [post]
func (h *SeatingExportHandler) CreateExport(c *gin.Context) {
	var req dto.CreateSeatingExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	actorID, _ := actorFromContext(c)
	result, err := h.service.CreateJob(c.Request.Context(), c.Param("id"), req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, result)
}

// ExportStatus godoc
// @Summary Get export job status
// @Tags Seating Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /seating/exports/{id} [get]
func (h *SeatingExportHandler) ExportStatus(c *gin.Context) {
	actorID, role := actorFromContext(c)
	result, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), actorID, role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a finished export via signed token
// @Tags Seating Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /seating/exports/download [get]
func (h *SeatingExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}
	contentType := "application/octet-stream"
	if renderer, err := export.ForFormat(string(result.Format)); err == nil {
		contentType = renderer.ContentType()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType, result.File, nil)
}
