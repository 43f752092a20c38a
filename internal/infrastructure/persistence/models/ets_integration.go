package models

import (
	"time"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/google/uuid"
)

// IntegrationConfigModel is the persistence model for a tenant's ETS connection.
// One row per tenant.
type IntegrationConfigModel struct {
	BaseModel
	TenantID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ets_config_tenant"`
	BaseURL      string    `gorm:"column:base_url;type:varchar(500);not null"`
	EncodedToken string    `gorm:"type:text;not null"`
	Active       bool      `gorm:"not null;default:true;index"`
	LastSyncAt   *time.Time
}

// TableName returns the table name for GORM
func (IntegrationConfigModel) TableName() string {
	return "ets_integration_configs"
}

// ToDomain converts the persistence model to a domain IntegrationConfig
func (m *IntegrationConfigModel) ToDomain() *fieldservice.IntegrationConfig {
	return &fieldservice.IntegrationConfig{
		ID:           m.ID,
		TenantID:     m.TenantID,
		BaseURL:      m.BaseURL,
		EncodedToken: m.EncodedToken,
		Active:       m.Active,
		LastSyncAt:   m.LastSyncAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain IntegrationConfig
func (m *IntegrationConfigModel) FromDomain(c *fieldservice.IntegrationConfig) {
	m.ID = c.ID
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
	m.TenantID = c.TenantID
	m.BaseURL = c.BaseURL
	m.EncodedToken = c.EncodedToken
	m.Active = c.Active
	m.LastSyncAt = c.LastSyncAt
}

// IntegrationConfigModelFromDomain creates a new persistence model from a domain IntegrationConfig
func IntegrationConfigModelFromDomain(c *fieldservice.IntegrationConfig) *IntegrationConfigModel {
	m := &IntegrationConfigModel{}
	m.FromDomain(c)
	return m
}

// TechnicianMappingModel is the persistence model for technician identity mappings
type TechnicianMappingModel struct {
	BaseModel
	TenantID             uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_ets_mapping_tenant_technician,priority:1"`
	TechnicianID         int64     `gorm:"not null;uniqueIndex:idx_ets_mapping_tenant_technician,priority:2"`
	ExternalTechnicianID string    `gorm:"type:varchar(64);not null"`
	ExternalName         string    `gorm:"type:varchar(255)"`
	Active               bool      `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (TechnicianMappingModel) TableName() string {
	return "ets_technician_mappings"
}

// ToDomain converts the persistence model to a domain TechnicianMapping
func (m *TechnicianMappingModel) ToDomain() *fieldservice.TechnicianMapping {
	return &fieldservice.TechnicianMapping{
		ID:                   m.ID,
		TenantID:             m.TenantID,
		TechnicianID:         m.TechnicianID,
		ExternalTechnicianID: m.ExternalTechnicianID,
		ExternalName:         m.ExternalName,
		Active:               m.Active,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain TechnicianMapping
func (m *TechnicianMappingModel) FromDomain(t *fieldservice.TechnicianMapping) {
	m.ID = t.ID
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
	m.TenantID = t.TenantID
	m.TechnicianID = t.TechnicianID
	m.ExternalTechnicianID = t.ExternalTechnicianID
	m.ExternalName = t.ExternalName
	m.Active = t.Active
}

// TechnicianMappingModelFromDomain creates a new persistence model from a domain TechnicianMapping
func TechnicianMappingModelFromDomain(t *fieldservice.TechnicianMapping) *TechnicianMappingModel {
	m := &TechnicianMappingModel{}
	m.FromDomain(t)
	return m
}
