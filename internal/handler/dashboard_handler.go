package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unihub-dev/clearance-api/internal/middleware"
	"github.com/unihub-dev/clearance-api/internal/models"
	"github.com/unihub-dev/clearance-api/internal/service"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
	"github.com/unihub-dev/clearance-api/pkg/response"
)

// DashboardHandler exposes reporting projections.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Overview godoc
// @Summary      System-wide clearance aggregates
// @Tags         dashboard
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} response.Envelope{data=dto.OverviewResponse}
// @Router       /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	overview, err := h.dashboard.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil)
}

// MyProgress godoc
// @Summary      Clearance progress for the calling student
// @Tags         dashboard
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} response.Envelope{data=dto.StudentProgressResponse}
// @Router       /dashboard/progress [get]
func (h *DashboardHandler) MyProgress(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	progress, err := h.dashboard.StudentProgress(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// StudentProgress godoc
// @Summary      Clearance progress for a given student
// @Tags         dashboard
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Student id"
// @Success      200 {object} response.Envelope{data=dto.StudentProgressResponse}
// @Failure      404 {object} response.Envelope
// @Router       /students/{id}/progress [get]
func (h *DashboardHandler) StudentProgress(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID := c.Param("id")
	if claims.Role == models.RoleStudent && claims.UserID != studentID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	progress, err := h.dashboard.StudentProgress(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}
