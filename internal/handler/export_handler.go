package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unihub-dev/clearance-api/internal/middleware"
	"github.com/unihub-dev/clearance-api/internal/models"
	"github.com/unihub-dev/clearance-api/internal/service"
	"github.com/unihub-dev/clearance-api/pkg/response"
)

// ExportHandler exposes clearance register downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs the handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Generate godoc
// @Summary      Export the clearance register
// @Tags         exports
// @Security     BearerAuth
// @Produce      json
// @Produce      text/csv
// @Produce      application/pdf
// @Param        format query string true "csv or pdf"
// @Param        status query string false "Filter by status"
// @Param        type query string false "Filter by clearance type"
// @Success      200
// @Success      202 {object} response.Envelope{data=service.ExportResult}
// @Router       /exports/requests [get]
func (h *ExportHandler) Generate(c *gin.Context) {
	filter := models.ClearanceRequestFilter{
		Type:   c.Query("type"),
		Status: models.RequestStatus(c.Query("status")),
	}

	result, err := h.exports.Generate(c.Request.Context(), middleware.CurrentUser(c), c.DefaultQuery("format", service.FormatCSV), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Async {
		response.JSON(c, http.StatusAccepted, result, nil)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// JobStatus godoc
// @Summary      Check a deferred export job
// @Tags         exports
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Job id"
// @Success      200 {object} response.Envelope{data=service.ExportJobStatus}
// @Failure      404 {object} response.Envelope
// @Router       /exports/jobs/{id} [get]
func (h *ExportHandler) JobStatus(c *gin.Context) {
	status, err := h.exports.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
