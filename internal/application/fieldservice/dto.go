package fieldservice

import (
	"time"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/google/uuid"
)

// CompleteOrderInput carries the technician's completion report
type CompleteOrderInput struct {
	Note          string `json:"note" binding:"max=4000"`
	MaterialsUsed string `json:"materials_used" binding:"max=4000"`
}

// ServiceOrderResponse represents a service order in API responses
type ServiceOrderResponse struct {
	ID             uuid.UUID  `json:"id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	ExternalID     *string    `json:"external_id,omitempty"`
	Origin         string     `json:"origin"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	TechnicianID   int64      `json:"technician_id"`
	CustomerName   string     `json:"customer_name"`
	CustomerAddr   string     `json:"customer_address"`
	CustomerPhone  string     `json:"customer_phone"`
	Subject        string     `json:"subject"`
	Notes          string     `json:"notes"`
	CompletionNote string     `json:"completion_note,omitempty"`
	MaterialsUsed  string     `json:"materials_used,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	SyncError      *string    `json:"sync_error,omitempty"`
	SyncAttempts   int        `json:"sync_attempts"`
	SyncedAt       *time.Time `json:"synced_at,omitempty"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ToServiceOrderResponse converts a domain ServiceOrder to a response DTO
func ToServiceOrderResponse(o *fieldservice.ServiceOrder) ServiceOrderResponse {
	return ServiceOrderResponse{
		ID:             o.ID,
		TenantID:       o.TenantID,
		ExternalID:     o.ExternalID,
		Origin:         o.Origin.String(),
		Status:         o.Status.String(),
		Priority:       o.Priority.String(),
		TechnicianID:   o.TechnicianID,
		CustomerName:   o.Customer.Name,
		CustomerAddr:   o.Customer.Address,
		CustomerPhone:  o.Customer.Phone,
		Subject:        o.Subject,
		Notes:          o.Notes,
		CompletionNote: o.CompletionNote,
		MaterialsUsed:  o.MaterialsUsed,
		CompletedAt:    o.CompletedAt,
		SyncError:      o.SyncError,
		SyncAttempts:   o.SyncAttempts,
		SyncedAt:       o.SyncedAt,
		Version:        o.Version,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

// ToServiceOrderResponses converts a slice of orders
func ToServiceOrderResponses(orders []fieldservice.ServiceOrder) []ServiceOrderResponse {
	responses := make([]ServiceOrderResponse, len(orders))
	for i := range orders {
		responses[i] = ToServiceOrderResponse(&orders[i])
	}
	return responses
}

// CompleteOrderResponse is returned by CompleteOrder. Push describes the
// outbound mirror attempt; the completion itself already succeeded.
type CompleteOrderResponse struct {
	Order ServiceOrderResponse `json:"order"`
	Push  PushSummary          `json:"push"`
}

// PushSummary reports an outbound completion push
type PushSummary struct {
	Skipped bool   `json:"skipped"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
