package handler

import (
	"context"

	appintegration "github.com/fieldops/backend/internal/application/integration"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IntegrationUseCases is the slice of IntegrationService the handler needs
type IntegrationUseCases interface {
	TestConnection(ctx context.Context, tenantID uuid.UUID) (*appintegration.ConnectionStatus, error)
	SyncNow(ctx context.Context, tenantID uuid.UUID) (*appintegration.PassResult, error)
}

var _ IntegrationUseCases = (*appintegration.IntegrationService)(nil)

// IntegrationHandler exposes operator actions on the tenant's ETS integration
type IntegrationHandler struct {
	BaseHandler
	integrations IntegrationUseCases
}

// NewIntegrationHandler creates a new IntegrationHandler
func NewIntegrationHandler(integrations IntegrationUseCases) *IntegrationHandler {
	return &IntegrationHandler{integrations: integrations}
}

// TestConnection godoc
// @Summary      Probe the tenant's ticketing system
// @Tags         integrations
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response{data=appintegration.ConnectionStatus}
// @Failure      422 {object} dto.Response
// @Router       /integrations/ets/test-connection [get]
func (h *IntegrationHandler) TestConnection(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	status, err := h.integrations.TestConnection(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, status)
}

// Sync godoc
// @Summary      Reconcile the tenant now
// @Description  Runs one reconciliation pass for the tenant. Returns 409 while a sweep is running.
// @Tags         integrations
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response{data=appintegration.PassResult}
// @Failure      409 {object} dto.Response
// @Router       /integrations/ets/sync [post]
func (h *IntegrationHandler) Sync(c *gin.Context) {
	tenantID, ok := h.tenant(c)
	if !ok {
		return
	}

	result, err := h.integrations.SyncNow(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}
