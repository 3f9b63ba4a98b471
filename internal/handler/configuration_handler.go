package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unihub-dev/clearance-api/internal/dto"
	"github.com/unihub-dev/clearance-api/internal/middleware"
	"github.com/unihub-dev/clearance-api/internal/service"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
	"github.com/unihub-dev/clearance-api/pkg/response"
)

// ConfigurationHandler exposes system settings management.
type ConfigurationHandler struct {
	configurations *service.ConfigurationService
}

// NewConfigurationHandler constructs the handler.
func NewConfigurationHandler(configurations *service.ConfigurationService) *ConfigurationHandler {
	return &ConfigurationHandler{configurations: configurations}
}

// List godoc
// @Summary      List system settings
// @Tags         configuration
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} response.Envelope{data=[]dto.ConfigurationItem}
// @Router       /configuration [get]
func (h *ConfigurationHandler) List(c *gin.Context) {
	items, err := h.configurations.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary      Fetch one system setting
// @Tags         configuration
// @Security     BearerAuth
// @Produce      json
// @Param        key path string true "Setting key"
// @Success      200 {object} response.Envelope{data=dto.ConfigurationItem}
// @Failure      404 {object} response.Envelope
// @Router       /configuration/{key} [get]
func (h *ConfigurationHandler) Get(c *gin.Context) {
	item, err := h.configurations.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Update godoc
// @Summary      Update one system setting
// @Tags         configuration
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        key path string true "Setting key"
// @Param        payload body dto.UpdateConfigurationRequest true "New value"
// @Success      200 {object} response.Envelope{data=dto.ConfigurationItem}
// @Router       /configuration/{key} [put]
func (h *ConfigurationHandler) Update(c *gin.Context) {
	var req dto.UpdateConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	item, err := h.configurations.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("key"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
