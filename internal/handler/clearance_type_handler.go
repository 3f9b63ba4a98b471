package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unihub-dev/clearance-api/internal/middleware"
	"github.com/unihub-dev/clearance-api/internal/service"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
	"github.com/unihub-dev/clearance-api/pkg/response"
)

// ClearanceTypeHandler exposes the clearance type catalogue.
type ClearanceTypeHandler struct {
	types *service.ClearanceTypeService
	users *service.UserService
}

// NewClearanceTypeHandler constructs the handler.
func NewClearanceTypeHandler(types *service.ClearanceTypeService, users *service.UserService) *ClearanceTypeHandler {
	return &ClearanceTypeHandler{types: types, users: users}
}

// List godoc
// @Summary      List clearance types
// @Tags         clearance-types
// @Security     BearerAuth
// @Produce      json
// @Param        include_inactive query bool false "Include deactivated types (admin only)"
// @Success      200 {object} response.Envelope{data=[]models.ClearanceType}
// @Router       /clearance-types [get]
func (h *ClearanceTypeHandler) List(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	includeInactive, _ := strconv.ParseBool(c.DefaultQuery("include_inactive", "false"))
	if claims == nil || !claims.IsAdmin() {
		includeInactive = false
	}

	types, err := h.types.List(c.Request.Context(), includeInactive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// Eligible godoc
// @Summary      List clearance types the calling student may apply for
// @Tags         clearance-types
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} response.Envelope{data=[]models.ClearanceType}
// @Router       /clearance-types/eligible [get]
func (h *ClearanceTypeHandler) Eligible(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	student, err := h.users.GetStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	types, err := h.types.EligibleForStudent(c.Request.Context(), student.Profile)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// Get godoc
// @Summary      Fetch one clearance type
// @Tags         clearance-types
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Type id"
// @Success      200 {object} response.Envelope{data=models.ClearanceType}
// @Failure      404 {object} response.Envelope
// @Router       /clearance-types/{id} [get]
func (h *ClearanceTypeHandler) Get(c *gin.Context) {
	ct, err := h.types.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ct, nil)
}

// Create godoc
// @Summary      Create a clearance type
// @Tags         clearance-types
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload body service.CreateClearanceTypeRequest true "Clearance type"
// @Success      201 {object} response.Envelope{data=models.ClearanceType}
// @Failure      409 {object} response.Envelope
// @Router       /clearance-types [post]
func (h *ClearanceTypeHandler) Create(c *gin.Context) {
	var req service.CreateClearanceTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	ct, err := h.types.Create(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ct)
}

// Update godoc
// @Summary      Update a clearance type
// @Tags         clearance-types
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path string true "Type id"
// @Param        payload body service.UpdateClearanceTypeRequest true "Clearance type"
// @Success      200 {object} response.Envelope{data=models.ClearanceType}
// @Router       /clearance-types/{id} [put]
func (h *ClearanceTypeHandler) Update(c *gin.Context) {
	var req service.UpdateClearanceTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	ct, err := h.types.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ct, nil)
}

// SetActive godoc
// @Summary      Activate or deactivate a clearance type
// @Tags         clearance-types
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path string true "Type id"
// @Success      200 {object} response.Envelope{data=models.ClearanceType}
// @Router       /clearance-types/{id}/active [patch]
func (h *ClearanceTypeHandler) SetActive(c *gin.Context) {
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	ct, err := h.types.SetActive(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), *req.Active)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ct, nil)
}
