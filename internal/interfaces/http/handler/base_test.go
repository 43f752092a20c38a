package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/domain/integration"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/scheduler"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestGetRequestID(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(*gin.Context)
		expectedID string
	}{
		{
			name: "from context",
			setup: func(c *gin.Context) {
				c.Set(middleware.RequestIDKey, "ctx-request-id")
			},
			expectedID: "ctx-request-id",
		},
		{
			name: "from header when context empty",
			setup: func(c *gin.Context) {
				c.Request.Header.Set(middleware.RequestIDHeader, "header-request-id")
			},
			expectedID: "header-request-id",
		},
		{
			name:       "empty when not set",
			setup:      func(c *gin.Context) {},
			expectedID: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(c)

			assert.Equal(t, tt.expectedID, getRequestID(c))
		})
	}
}

func TestGetTenantID(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, err := getTenantID(c)
	assert.Error(t, err)

	tenantID := uuid.New()
	c.Set(middleware.TenantIDKey, tenantID)
	got, err := getTenantID(c)
	require.NoError(t, err)
	assert.Equal(t, tenantID, got)
}

func TestBaseHandler_HandleDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"order not found", fieldservice.ErrServiceOrderNotFound, http.StatusNotFound, dto.ErrCodeNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", fieldservice.ErrServiceOrderNotFound), http.StatusNotFound, dto.ErrCodeNotFound},
		{"already completed", fieldservice.ErrOrderAlreadyCompleted, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"cancelled", fieldservice.ErrOrderCancelled, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"not completed", fieldservice.ErrOrderNotCompleted, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"not external", fieldservice.ErrNotExternalOrder, http.StatusUnprocessableEntity, dto.ErrCodeInvalidState},
		{"invalid order", fieldservice.ErrInvalidOrder, http.StatusBadRequest, dto.ErrCodeInvalidInput},
		{"config missing", fmt.Errorf("%w: integration is inactive", fieldservice.ErrConfigMissing), http.StatusUnprocessableEntity, dto.ErrCodeIntegrationNotConfigured},
		{"sweep in progress", scheduler.ErrSweepInProgress, http.StatusConflict, dto.ErrCodeConflict},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable, dto.ErrCodeUnavailable},
		{"upstream", integration.NewIntegrationError(integration.ErrorKindAuth, "test_connection", nil), http.StatusBadGateway, dto.ErrCodeUpstream},
		{"domain error", shared.ErrConcurrencyConflict, http.StatusConflict, dto.ErrCodeConcurrencyConflict},
		{"unknown", assert.AnError, http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			c.Set(middleware.RequestIDKey, "req-1")

			h := &BaseHandler{}
			h.HandleDomainError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-1", resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_UnknownErrorTextNotLeaked(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	(&BaseHandler{}).HandleDomainError(c, fmt.Errorf("pq: password authentication failed"))

	assert.NotContains(t, w.Body.String(), "password")
}

func TestBaseHandler_ParseIDParam(t *testing.T) {
	h := &BaseHandler{}
	router := gin.New()
	router.GET("/orders/:id", func(c *gin.Context) {
		id, ok := h.parseIDParam(c, "id")
		if !ok {
			return
		}
		h.Success(c, id)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidationFormat, decodeResponse(t, w).Error.Code)

	id := uuid.New()
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/"+id.String(), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
