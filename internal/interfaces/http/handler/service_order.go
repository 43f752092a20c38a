package handler

import (
	"context"
	"net/http"

	appfieldservice "github.com/fieldops/backend/internal/application/fieldservice"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ServiceOrderUseCases is the slice of ServiceOrderService the handler needs
type ServiceOrderUseCases interface {
	GetOrder(ctx context.Context, tenantID, orderID uuid.UUID) (*appfieldservice.ServiceOrderResponse, error)
	CompleteOrder(ctx context.Context, tenantID, orderID uuid.UUID, input appfieldservice.CompleteOrderInput) (*appfieldservice.CompleteOrderResponse, error)
	RetrySync(ctx context.Context, tenantID, orderID uuid.UUID) (*appfieldservice.CompleteOrderResponse, error)
	ListSyncFailures(ctx context.Context, tenantID uuid.UUID, limit int) ([]appfieldservice.ServiceOrderResponse, error)
}

var _ ServiceOrderUseCases = (*appfieldservice.ServiceOrderService)(nil)

// ServiceOrderHandler handles service order endpoints
type ServiceOrderHandler struct {
	BaseHandler
	orders ServiceOrderUseCases
}

// NewServiceOrderHandler creates a new ServiceOrderHandler
func NewServiceOrderHandler(orders ServiceOrderUseCases) *ServiceOrderHandler {
	return &ServiceOrderHandler{orders: orders}
}

// SyncFailuresQuery bounds the operator worklist
type SyncFailuresQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// GetByID godoc
// @Summary      Get a service order
// @Tags         service-orders
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Service order ID" format(uuid)
// @Success      200 {object} dto.Response{data=appfieldservice.ServiceOrderResponse}
// @Failure      404 {object} dto.Response
// @Router       /service-orders/{id} [get]
func (h *ServiceOrderHandler) GetByID(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	orderID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), tenantID, orderID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, order)
}

// Complete godoc
// @Summary      Complete a service order
// @Description  Commits the completion locally, then mirrors it to the ticketing system.
// @Description  A failed mirror is reported in push and never undoes the completion.
// @Tags         service-orders
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Service order ID" format(uuid)
// @Param        request body appfieldservice.CompleteOrderInput true "Completion report"
// @Success      200 {object} dto.Response{data=appfieldservice.CompleteOrderResponse}
// @Failure      422 {object} dto.Response
// @Router       /service-orders/{id}/complete [post]
func (h *ServiceOrderHandler) Complete(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	orderID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	var input appfieldservice.CompleteOrderInput
	if !h.bindJSON(c, &input) {
		return
	}

	resp, err := h.orders.CompleteOrder(c.Request.Context(), tenantID, orderID, input)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, resp)
}

// RetrySync godoc
// @Summary      Retry the outbound completion push
// @Tags         service-orders
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Service order ID" format(uuid)
// @Success      200 {object} dto.Response{data=appfieldservice.CompleteOrderResponse}
// @Failure      422 {object} dto.Response
// @Router       /service-orders/{id}/sync-retry [post]
func (h *ServiceOrderHandler) RetrySync(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	orderID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	resp, err := h.orders.RetrySync(c.Request.Context(), tenantID, orderID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListSyncFailures godoc
// @Summary      List orders whose completion push failed
// @Tags         service-orders
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        limit query int false "Maximum rows" minimum(1) maximum(500)
// @Success      200 {object} dto.Response{data=[]appfieldservice.ServiceOrderResponse}
// @Router       /service-orders/sync-failures [get]
func (h *ServiceOrderHandler) ListSyncFailures(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}
	var query SyncFailuresQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "limit must be between 1 and 500")
		return
	}

	orders, err := h.orders.ListSyncFailures(c.Request.Context(), tenantID, query.Limit)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, orders)
}
