package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/domain/integration"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/infrastructure/scheduler"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/fieldops/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context, falling back to the header
func getRequestID(c *gin.Context) string {
	if id := middleware.GetRequestID(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// getTenantID returns the tenant resolved by the tenant middleware
func getTenantID(c *gin.Context) (uuid.UUID, error) {
	tenantID := middleware.GetTenantID(c)
	if tenantID == uuid.Nil {
		return uuid.Nil, errors.New("tenant not resolved")
	}
	return tenantID, nil
}

// parseIDParam parses a UUID path parameter, writing a 400 on failure
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationFormat, "Invalid "+name+": must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// tenant resolves the request tenant, writing a 400 when it is missing
func (h *BaseHandler) tenant(c *gin.Context) (uuid.UUID, bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.ErrorWithCode(c, dto.ErrCodeTenantRequired, "X-Tenant-ID header is required")
		return uuid.Nil, false
	}
	return tenantID, true
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// Conflict sends a 409 conflict response
func (h *BaseHandler) Conflict(c *gin.Context, message string) {
	h.Error(c, http.StatusConflict, dto.ErrCodeConflict, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// domainErrorMapping maps domain sentinels to API error codes and messages
var domainErrorMapping = []struct {
	target  error
	code    string
	message string
}{
	{fieldservice.ErrServiceOrderNotFound, dto.ErrCodeNotFound, "Service order not found"},
	{fieldservice.ErrOrderAlreadyCompleted, dto.ErrCodeInvalidState, "Service order is already completed"},
	{fieldservice.ErrOrderCancelled, dto.ErrCodeInvalidState, "Service order is cancelled"},
	{fieldservice.ErrOrderNotCompleted, dto.ErrCodeInvalidState, "Service order is not completed"},
	{fieldservice.ErrNotExternalOrder, dto.ErrCodeInvalidState, "Service order did not originate in the ticketing system"},
	{fieldservice.ErrInvalidOrder, dto.ErrCodeInvalidInput, "Invalid service order"},
	{fieldservice.ErrConfigMissing, dto.ErrCodeIntegrationNotConfigured, "Integration is not configured for this tenant"},
	{fieldservice.ErrInvalidIntegrationConfig, dto.ErrCodeIntegrationNotConfigured, "Integration configuration is invalid"},
	{integration.ErrClientNotConfigured, dto.ErrCodeIntegrationNotConfigured, "Ticketing client is not configured"},
	{scheduler.ErrSweepInProgress, dto.ErrCodeConflict, "A reconciliation sweep is already in progress"},
	{context.DeadlineExceeded, dto.ErrCodeUnavailable, "The operation timed out"},
}

// HandleDomainError converts domain errors to HTTP responses. Unknown errors
// are logged and reported as internal errors without leaking their text.
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	for _, m := range domainErrorMapping {
		if errors.Is(err, m.target) {
			h.ErrorWithCode(c, m.code, m.message)
			return
		}
	}

	var integrationErr *integration.IntegrationError
	if errors.As(err, &integrationErr) {
		h.ErrorWithCode(c, dto.ErrCodeUpstream, "Ticketing system request failed: "+integrationErr.Kind.String())
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.ErrorWithCode(c, domainErr.Code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("Unhandled request error", zap.Error(err))
	h.InternalError(c, "An unexpected error occurred")
}

// bindJSON binds the request body, writing a validation response on failure
func (h *BaseHandler) bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}
