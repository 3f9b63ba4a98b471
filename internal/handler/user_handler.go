package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/unihub-dev/clearance-api/internal/middleware"
	"github.com/unihub-dev/clearance-api/internal/models"
	"github.com/unihub-dev/clearance-api/internal/service"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
	"github.com/unihub-dev/clearance-api/pkg/response"
)

// UserHandler exposes admin account management and the audit trail.
type UserHandler struct {
	users *service.UserService
}

// NewUserHandler constructs the handler.
func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// List godoc
// @Summary      List user accounts
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        role query string false "Filter by role"
// @Param        active query bool false "Filter by active flag"
// @Param        search query string false "Search email or name"
// @Success      200 {object} response.Envelope{data=[]models.User}
// @Router       /users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter := models.UserFilter{
		Search:    c.Query("search"),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}
	if active := c.Query("active"); active != "" {
		if parsed, err := strconv.ParseBool(active); err == nil {
			filter.Active = &parsed
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	users, pagination, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, pagination)
}

// GetStudent godoc
// @Summary      Fetch a student account with its academic profile
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "User id"
// @Success      200 {object} response.Envelope{data=models.StudentDetail}
// @Failure      404 {object} response.Envelope
// @Router       /users/students/{id} [get]
func (h *UserHandler) GetStudent(c *gin.Context) {
	detail, err := h.users.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// GetOfficer godoc
// @Summary      Fetch an officer account with its review scope
// @Tags         users
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "User id"
// @Success      200 {object} response.Envelope{data=models.OfficerDetail}
// @Failure      404 {object} response.Envelope
// @Router       /users/officers/{id} [get]
func (h *UserHandler) GetOfficer(c *gin.Context) {
	detail, err := h.users.GetOfficer(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Create godoc
// @Summary      Register a user account
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload body service.CreateUserRequest true "Account"
// @Success      201 {object} response.Envelope{data=models.User}
// @Failure      409 {object} response.Envelope
// @Router       /users [post]
func (h *UserHandler) Create(c *gin.Context) {
	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	user, err := h.users.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// Update godoc
// @Summary      Update a user account
// @Tags         users
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path string true "User id"
// @Param        payload body service.UpdateUserRequest true "Account"
// @Success      200 {object} response.Envelope{data=models.User}
// @Router       /users/{id} [put]
func (h *UserHandler) Update(c *gin.Context) {
	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	user, err := h.users.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// AuditTrail godoc
// @Summary      List audit log entries
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        user_id query string false "Filter by actor"
// @Param        action query string false "Filter by action"
// @Param        resource query string false "Filter by resource"
// @Param        from query string false "RFC3339 lower bound"
// @Param        to query string false "RFC3339 upper bound"
// @Success      200 {object} response.Envelope{data=[]models.AuditLog}
// @Router       /audit-logs [get]
func (h *UserHandler) AuditTrail(c *gin.Context) {
	filter := models.AuditLogFilter{
		UserID:   c.Query("user_id"),
		Action:   c.Query("action"),
		Resource: c.Query("resource"),
	}
	if from := c.Query("from"); from != "" {
		if ts, err := time.Parse(time.RFC3339, from); err == nil {
			filter.DateFrom = &ts
		}
	}
	if to := c.Query("to"); to != "" {
		if ts, err := time.Parse(time.RFC3339, to); err == nil {
			filter.DateTo = &ts
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	logs, pagination, err := h.users.AuditTrail(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
