package integration

import (
	"context"
	"fmt"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/domain/integration"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantSyncTrigger runs a single-tenant pass under the sweep guard so it
// never overlaps a scheduled sweep.
type TenantSyncTrigger interface {
	SyncTenant(ctx context.Context, tenantID uuid.UUID) (*PassResult, error)
}

// ConnectionStatus is the result of a connectivity probe
type ConnectionStatus struct {
	TenantID  uuid.UUID `json:"tenant_id"`
	BaseURL   string    `json:"base_url"`
	Reachable bool      `json:"reachable"`
}

// IntegrationService exposes operator actions on a tenant's ETS integration
type IntegrationService struct {
	configs fieldservice.IntegrationConfigRepository
	clients integration.ClientFactory
	trigger TenantSyncTrigger
	logger  *zap.Logger
}

// NewIntegrationService creates an IntegrationService
func NewIntegrationService(
	configs fieldservice.IntegrationConfigRepository,
	clients integration.ClientFactory,
	trigger TenantSyncTrigger,
	logger *zap.Logger,
) *IntegrationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntegrationService{
		configs: configs,
		clients: clients,
		trigger: trigger,
		logger:  logger.Named("integration_service"),
	}
}

// TestConnection probes the tenant's external system with a read-only call
func (s *IntegrationService) TestConnection(ctx context.Context, tenantID uuid.UUID) (*ConnectionStatus, error) {
	cfg, err := s.configs.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !cfg.IsUsable() {
		return nil, fmt.Errorf("%w: integration is inactive", fieldservice.ErrConfigMissing)
	}
	client, err := s.clients.ForConfig(cfg)
	if err != nil {
		return nil, err
	}

	reachable := client.TestConnection(ctx)
	s.logger.Info("Tested ETS connection",
		zap.String("tenant_id", tenantID.String()),
		zap.Bool("reachable", reachable),
	)
	return &ConnectionStatus{TenantID: tenantID, BaseURL: cfg.BaseURL, Reachable: reachable}, nil
}

// SyncNow runs an immediate reconciliation pass for one tenant
func (s *IntegrationService) SyncNow(ctx context.Context, tenantID uuid.UUID) (*PassResult, error) {
	return s.trigger.SyncTenant(ctx, tenantID)
}
