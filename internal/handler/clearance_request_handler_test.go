package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/unihub-dev/clearance-api/internal/middleware"
	"github.com/unihub-dev/clearance-api/internal/models"
	"github.com/unihub-dev/clearance-api/internal/service"
)

func newRequestTestContext(t *testing.T, method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestSubmitRejectsMissingClaims(t *testing.T) {
	handler := NewClearanceRequestHandler(service.NewClearanceRequestService(nil, nil, nil, nil, nil, nil, service.ClearanceRequestServiceConfig{}), nil)
	c, w := newRequestTestContext(t, http.MethodPost, "/requests", []byte(`{"type":"library"}`))

	handler.Submit(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSubmitRejectsInvalidBody(t *testing.T) {
	handler := NewClearanceRequestHandler(service.NewClearanceRequestService(nil, nil, nil, nil, nil, nil, service.ClearanceRequestServiceConfig{}), nil)
	c, w := newRequestTestContext(t, http.MethodPost, "/requests", []byte(`not-json`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Submit(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecideRejectsInvalidBody(t *testing.T) {
	handler := NewClearanceRequestHandler(service.NewClearanceRequestService(nil, nil, nil, nil, nil, nil, service.ClearanceRequestServiceConfig{}), nil)
	c, w := newRequestTestContext(t, http.MethodPost, "/requests/req-1/decision", []byte(`{`))
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "off-1", Role: models.RoleOfficer})

	handler.Decide(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecideBulkRejectsInvalidBody(t *testing.T) {
	handler := NewClearanceRequestHandler(service.NewClearanceRequestService(nil, nil, nil, nil, nil, nil, service.ClearanceRequestServiceConfig{}), nil)
	c, w := newRequestTestContext(t, http.MethodPost, "/requests/bulk-decision", []byte(`[]`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "off-1", Role: models.RoleOfficer})

	handler.DecideBulk(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
