package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/unihub-dev/clearance-api/internal/middleware"
	"github.com/unihub-dev/clearance-api/internal/models"
	"github.com/unihub-dev/clearance-api/internal/service"
	appErrors "github.com/unihub-dev/clearance-api/pkg/errors"
	"github.com/unihub-dev/clearance-api/pkg/response"
)

type decisionCounter interface {
	CountDecision(decision string)
}

// ClearanceRequestHandler exposes the request lifecycle endpoints.
type ClearanceRequestHandler struct {
	requests *service.ClearanceRequestService
	metrics  decisionCounter
}

// NewClearanceRequestHandler constructs the handler. metrics may be nil.
func NewClearanceRequestHandler(requests *service.ClearanceRequestService, metrics decisionCounter) *ClearanceRequestHandler {
	return &ClearanceRequestHandler{requests: requests, metrics: metrics}
}

// Submit godoc
// @Summary      Submit a clearance request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload body service.SubmitRequest true "Submission"
// @Success      201 {object} response.Envelope{data=models.ClearanceRequestDetail}
// @Failure      403 {object} response.Envelope
// @Failure      409 {object} response.Envelope
// @Router       /requests [post]
func (h *ClearanceRequestHandler) Submit(c *gin.Context) {
	claims := middleware.CurrentUser(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	detail, err := h.requests.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary      List clearance requests visible to the caller
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        status query string false "Filter by status"
// @Param        type query string false "Filter by clearance type"
// @Param        page query int false "Page"
// @Param        page_size query int false "Page size"
// @Success      200 {object} response.Envelope{data=[]models.ClearanceRequestDetail}
// @Router       /requests [get]
func (h *ClearanceRequestHandler) List(c *gin.Context) {
	filter := models.ClearanceRequestFilter{
		Type:      c.Query("type"),
		Status:    models.RequestStatus(c.Query("status")),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	details, pagination, err := h.requests.List(c.Request.Context(), middleware.CurrentUser(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, pagination)
}

// Get godoc
// @Summary      Fetch one clearance request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id path string true "Request id"
// @Success      200 {object} response.Envelope{data=models.ClearanceRequestDetail}
// @Failure      404 {object} response.Envelope
// @Router       /requests/{id} [get]
func (h *ClearanceRequestHandler) Get(c *gin.Context) {
	detail, err := h.requests.GetByID(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Decide godoc
// @Summary      Approve or reject a pending request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id path string true "Request id"
// @Param        payload body service.DecisionRequest true "Decision"
// @Success      200 {object} response.Envelope{data=models.ClearanceRequestDetail}
// @Failure      409 {object} response.Envelope
// @Router       /requests/{id}/decision [post]
func (h *ClearanceRequestHandler) Decide(c *gin.Context) {
	var req service.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	detail, err := h.requests.Decide(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.CountDecision(string(req.Decision))
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// DecideBulk godoc
// @Summary      Apply one decision to many pending requests
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload body service.BulkDecisionRequest true "Bulk decision"
// @Success      200 {object} response.Envelope{data=models.BulkDecisionResult}
// @Router       /requests/bulk-decision [post]
func (h *ClearanceRequestHandler) DecideBulk(c *gin.Context) {
	var req service.BulkDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	result, err := h.requests.DecideBulk(c.Request.Context(), middleware.CurrentUser(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		for i := 0; i < result.ProcessedCount; i++ {
			h.metrics.CountDecision(string(req.Decision))
		}
	}
	response.JSON(c, http.StatusOK, result, nil)
}
