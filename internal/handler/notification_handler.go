package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unihub-dev/clearance-api/internal/middleware"
	"github.com/unihub-dev/clearance-api/internal/service"
	"github.com/unihub-dev/clearance-api/pkg/response"
)

// NotificationHandler serves the pull-based notification feed.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List godoc
// @Summary      Recent activity relevant to the caller
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200 {object} response.Envelope{data=[]dto.NotificationItem}
// @Router       /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	items, err := h.notifications.ForUser(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
