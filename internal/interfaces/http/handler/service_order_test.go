package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appfieldservice "github.com/fieldops/backend/internal/application/fieldservice"
	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockServiceOrderUseCases struct {
	mock.Mock
}

func (m *MockServiceOrderUseCases) GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*appfieldservice.ServiceOrderResponse, error) {
	args := m.Called(ctx, tenantID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appfieldservice.ServiceOrderResponse), args.Error(1)
}

func (m *MockServiceOrderUseCases) CompleteOrder(ctx context.Context, tenantID, orderID uuid.UUID, input appfieldservice.CompleteOrderInput) (*appfieldservice.CompleteOrderResponse, error) {
	args := m.Called(ctx, tenantID, orderID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appfieldservice.CompleteOrderResponse), args.Error(1)
}

func (m *MockServiceOrderUseCases) RetrySync(ctx context.Context, tenantID, orderID uuid.UUID) (*appfieldservice.CompleteOrderResponse, error) {
	args := m.Called(ctx, tenantID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appfieldservice.CompleteOrderResponse), args.Error(1)
}

func (m *MockServiceOrderUseCases) ListSyncFailures(ctx context.Context, tenantID uuid.UUID, limit int) ([]appfieldservice.ServiceOrderResponse, error) {
	args := m.Called(ctx, tenantID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]appfieldservice.ServiceOrderResponse), args.Error(1)
}

func newServiceOrderRouter(orders ServiceOrderUseCases) *gin.Engine {
	middleware.SetupValidator()
	h := NewServiceOrderHandler(orders)

	router := gin.New()
	api := router.Group("/api/v1", middleware.RequestID(), middleware.Tenant())
	api.GET("/service-orders/sync-failures", h.ListSyncFailures)
	api.GET("/service-orders/:id", h.GetByID)
	api.POST("/service-orders/:id/complete", h.Complete)
	api.POST("/service-orders/:id/sync-retry", h.RetrySync)
	return router
}

func tenantRequest(method, path, body string, tenantID uuid.UUID) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.TenantHeaderKey, tenantID.String())
	return req
}

func TestServiceOrderHandler_GetByID(t *testing.T) {
	tenantID, orderID := uuid.New(), uuid.New()

	t.Run("returns the order", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)
		orders.On("GetOrder", mock.Anything, tenantID, orderID).
			Return(&appfieldservice.ServiceOrderResponse{ID: orderID, TenantID: tenantID, Status: "open"}, nil)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodGet, "/api/v1/service-orders/"+orderID.String(), "", tenantID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeResponse(t, w).Success)
		assert.Contains(t, w.Body.String(), orderID.String())
		orders.AssertExpectations(t)
	})

	t.Run("404 for another tenant's order", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)
		orders.On("GetOrder", mock.Anything, tenantID, orderID).Return(nil, fieldservice.ErrServiceOrderNotFound)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodGet, "/api/v1/service-orders/"+orderID.String(), "", tenantID))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)
	})

	t.Run("400 without tenant", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/service-orders/"+orderID.String(), nil)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		orders.AssertNotCalled(t, "GetOrder", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestServiceOrderHandler_Complete(t *testing.T) {
	tenantID, orderID := uuid.New(), uuid.New()
	path := "/api/v1/service-orders/" + orderID.String() + "/complete"

	t.Run("completion succeeds even when the push fails", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)
		input := appfieldservice.CompleteOrderInput{Note: "cabo trocado", MaterialsUsed: "2m cabo"}
		orders.On("CompleteOrder", mock.Anything, tenantID, orderID, input).Return(&appfieldservice.CompleteOrderResponse{
			Order: appfieldservice.ServiceOrderResponse{ID: orderID, Status: "completed"},
			Push:  appfieldservice.PushSummary{Success: false, Error: "network"},
		}, nil)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodPost, path,
			`{"note":"cabo trocado","materials_used":"2m cabo"}`, tenantID))

		require.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, `"status":"completed"`)
		assert.Contains(t, body, `"error":"network"`)
		orders.AssertExpectations(t)
	})

	t.Run("422 for an already completed order", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)
		orders.On("CompleteOrder", mock.Anything, tenantID, orderID, mock.Anything).Return(nil, fieldservice.ErrOrderAlreadyCompleted)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodPost, path, `{"note":"x"}`, tenantID))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidState, decodeResponse(t, w).Error.Code)
	})

	t.Run("400 for an oversized note", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)
		body := `{"note":"` + strings.Repeat("a", 4001) + `"}`

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodPost, path, body, tenantID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "note", resp.Error.Details[0].Field)
		orders.AssertNotCalled(t, "CompleteOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("400 for a malformed id", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodPost, "/api/v1/service-orders/42/complete", `{}`, tenantID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidationFormat, decodeResponse(t, w).Error.Code)
	})
}

func TestServiceOrderHandler_RetrySync(t *testing.T) {
	tenantID, orderID := uuid.New(), uuid.New()
	path := "/api/v1/service-orders/" + orderID.String() + "/sync-retry"

	t.Run("reports the push outcome", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)
		orders.On("RetrySync", mock.Anything, tenantID, orderID).Return(&appfieldservice.CompleteOrderResponse{
			Order: appfieldservice.ServiceOrderResponse{ID: orderID, Status: "completed"},
			Push:  appfieldservice.PushSummary{Success: true},
		}, nil)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodPost, path, "", tenantID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"success":true`)
	})

	t.Run("422 for a locally created order", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)
		orders.On("RetrySync", mock.Anything, tenantID, orderID).Return(nil, fieldservice.ErrNotExternalOrder)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodPost, path, "", tenantID))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestServiceOrderHandler_ListSyncFailures(t *testing.T) {
	tenantID := uuid.New()
	failure := "network"

	t.Run("passes the limit through", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)
		orders.On("ListSyncFailures", mock.Anything, tenantID, 25).Return([]appfieldservice.ServiceOrderResponse{
			{ID: uuid.New(), SyncError: &failure, SyncAttempts: 2},
		}, nil)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodGet, "/api/v1/service-orders/sync-failures?limit=25", "", tenantID))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"sync_attempts":2`)
		orders.AssertExpectations(t)
	})

	t.Run("zero limit defers to the service default", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)
		orders.On("ListSyncFailures", mock.Anything, tenantID, 0).Return([]appfieldservice.ServiceOrderResponse{}, nil)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodGet, "/api/v1/service-orders/sync-failures", "", tenantID))

		assert.Equal(t, http.StatusOK, w.Code)
		orders.AssertExpectations(t)
	})

	t.Run("400 for an out of range limit", func(t *testing.T) {
		orders := new(MockServiceOrderUseCases)

		w := httptest.NewRecorder()
		newServiceOrderRouter(orders).ServeHTTP(w, tenantRequest(http.MethodGet, "/api/v1/service-orders/sync-failures?limit=5000", "", tenantID))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		orders.AssertNotCalled(t, "ListSyncFailures", mock.Anything, mock.Anything, mock.Anything)
	})
}
