package models

import (
	"time"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/google/uuid"
)

// ServiceOrderModel is the persistence model for the ServiceOrder aggregate.
// (tenant_id, external_id) is unique; NULL external ids never collide.
type ServiceOrderModel struct {
	AggregateModel
	TenantID         uuid.UUID                  `gorm:"type:uuid;not null;uniqueIndex:idx_service_orders_tenant_external,priority:1;index:idx_service_orders_tenant_sync,priority:1"`
	ExternalID       *string                    `gorm:"type:varchar(64);uniqueIndex:idx_service_orders_tenant_external,priority:2"`
	Origin           fieldservice.OrderOrigin   `gorm:"type:varchar(16);not null;default:'local'"`
	Status           fieldservice.OrderStatus   `gorm:"type:varchar(20);not null;index"`
	Priority         fieldservice.OrderPriority `gorm:"type:varchar(10);not null"`
	TechnicianID     int64                      `gorm:"not null;index"`
	CustomerName     string                     `gorm:"type:varchar(255)"`
	CustomerAddress  string                     `gorm:"type:varchar(500)"`
	CustomerPhone    string                     `gorm:"type:varchar(50)"`
	Subject          string                     `gorm:"type:varchar(255)"`
	Notes            string                     `gorm:"type:text"`
	ExternalSnapshot string                     `gorm:"type:text"`
	SyncError        *string                    `gorm:"type:text"`
	SyncAttempts     int                        `gorm:"not null;default:0"`
	SyncedAt         *time.Time
	CompletionNote   string `gorm:"type:text"`
	MaterialsUsed    string `gorm:"type:text"`
	CompletedAt      *time.Time
}

// TableName returns the table name for GORM
func (ServiceOrderModel) TableName() string {
	return "service_orders"
}

// ToDomain converts the persistence model to a domain ServiceOrder
func (m *ServiceOrderModel) ToDomain() *fieldservice.ServiceOrder {
	order := &fieldservice.ServiceOrder{
		ExternalID:   m.ExternalID,
		Origin:       m.Origin,
		Status:       m.Status,
		Priority:     m.Priority,
		TechnicianID: m.TechnicianID,
		Customer: fieldservice.CustomerSnapshot{
			Name:    m.CustomerName,
			Address: m.CustomerAddress,
			Phone:   m.CustomerPhone,
		},
		Subject:        m.Subject,
		Notes:          m.Notes,
		SyncError:      m.SyncError,
		SyncAttempts:   m.SyncAttempts,
		SyncedAt:       m.SyncedAt,
		CompletionNote: m.CompletionNote,
		MaterialsUsed:  m.MaterialsUsed,
		CompletedAt:    m.CompletedAt,
	}
	if m.ExternalSnapshot != "" {
		order.ExternalSnapshot = []byte(m.ExternalSnapshot)
	}
	order.Aggregate = m.toAggregate(m.TenantID)
	return order
}

// FromDomain populates the persistence model from a domain ServiceOrder
func (m *ServiceOrderModel) FromDomain(o *fieldservice.ServiceOrder) {
	m.fromAggregate(o.Aggregate)
	m.TenantID = o.TenantID
	m.ExternalID = o.ExternalID
	m.Origin = o.Origin
	m.Status = o.Status
	m.Priority = o.Priority
	m.TechnicianID = o.TechnicianID
	m.CustomerName = o.Customer.Name
	m.CustomerAddress = o.Customer.Address
	m.CustomerPhone = o.Customer.Phone
	m.Subject = o.Subject
	m.Notes = o.Notes
	m.ExternalSnapshot = string(o.ExternalSnapshot)
	m.SyncError = o.SyncError
	m.SyncAttempts = o.SyncAttempts
	m.SyncedAt = o.SyncedAt
	m.CompletionNote = o.CompletionNote
	m.MaterialsUsed = o.MaterialsUsed
	m.CompletedAt = o.CompletedAt
}

// ServiceOrderModelFromDomain creates a new persistence model from a domain ServiceOrder
func ServiceOrderModelFromDomain(o *fieldservice.ServiceOrder) *ServiceOrderModel {
	m := &ServiceOrderModel{}
	m.FromDomain(o)
	return m
}
