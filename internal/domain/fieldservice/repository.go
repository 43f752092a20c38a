package fieldservice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ServiceOrderRepository persists ServiceOrder aggregates
type ServiceOrderRepository interface {
	// FindByID returns ErrServiceOrderNotFound when absent
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ServiceOrder, error)
	// FindByExternalID resolves an order by its idempotency key (tenant id, external id).
	// Returns ErrServiceOrderNotFound when absent.
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*ServiceOrder, error)
	Create(ctx context.Context, order *ServiceOrder) error
	// Save writes every column of the order
	Save(ctx context.Context, order *ServiceOrder) error
	// UpdateSyncState writes only sync_error, sync_attempts and synced_at. A
	// recorded failure increments the stored attempt counter atomically.
	UpdateSyncState(ctx context.Context, order *ServiceOrder) error
	// ListSyncFailures returns orders whose last outbound push failed, oldest first
	ListSyncFailures(ctx context.Context, tenantID uuid.UUID, limit int) ([]ServiceOrder, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// IntegrationConfigRepository reads tenant integration settings
type IntegrationConfigRepository interface {
	// FindByTenant returns ErrConfigMissing when the tenant has no config
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*IntegrationConfig, error)
	// FindActive returns every active config, ordered by tenant id
	FindActive(ctx context.Context) ([]IntegrationConfig, error)
	UpdateLastSyncAt(ctx context.Context, tenantID uuid.UUID, at time.Time) error
	Save(ctx context.Context, cfg *IntegrationConfig) error
}

// TechnicianMappingRepository reads technician identity mappings
type TechnicianMappingRepository interface {
	// FindActiveByTenant returns active mappings ordered by technician id
	FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]TechnicianMapping, error)
	// FindByTechnician returns ErrMappingMissing when no active mapping exists
	FindByTechnician(ctx context.Context, tenantID uuid.UUID, technicianID int64) (*TechnicianMapping, error)
	Save(ctx context.Context, mapping *TechnicianMapping) error
}
