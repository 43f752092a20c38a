package ets

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/domain/integration"
	"github.com/fieldops/backend/internal/infrastructure/secrets"
)

// Factory builds one Client per tenant from stored integration configs.
// Clients are cached so a tenant keeps its rate limiter across passes; a
// changed base URL or token replaces the cached client.
type Factory struct {
	base    ClientConfig
	decoder secrets.Decoder
	logger  *zap.Logger
	opts    []ClientOption

	mu      sync.Mutex
	clients map[uuid.UUID]cachedClient
}

type cachedClient struct {
	fingerprint string
	client      *Client
}

// NewFactory creates a factory. base supplies everything except BaseURL and Token.
func NewFactory(base ClientConfig, decoder secrets.Decoder, logger *zap.Logger, opts ...ClientOption) *Factory {
	if decoder == nil {
		decoder = secrets.Base64Codec{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		base:    base,
		decoder: decoder,
		logger:  logger,
		opts:    opts,
		clients: make(map[uuid.UUID]cachedClient),
	}
}

// ForConfig implements integration.ClientFactory
func (f *Factory) ForConfig(cfg *fieldservice.IntegrationConfig) (integration.TicketingSystem, error) {
	if cfg == nil {
		return nil, integration.ErrClientNotConfigured
	}
	if !cfg.IsUsable() {
		return nil, fmt.Errorf("%w: tenant %s", integration.ErrClientNotConfigured, cfg.TenantID)
	}

	fingerprint := cfg.BaseURL + "\x00" + cfg.EncodedToken

	f.mu.Lock()
	defer f.mu.Unlock()

	if cached, ok := f.clients[cfg.TenantID]; ok && cached.fingerprint == fingerprint {
		return cached.client, nil
	}

	token, err := f.decoder.Decode(cfg.EncodedToken)
	if err != nil {
		return nil, fmt.Errorf("ets: decode token for tenant %s: %w", cfg.TenantID, err)
	}

	cc := f.base
	cc.BaseURL = cfg.BaseURL
	cc.Token = token
	client, err := NewClient(cc, f.logger.With(zap.String("tenant_id", cfg.TenantID.String())), f.opts...)
	if err != nil {
		return nil, fmt.Errorf("ets: build client for tenant %s: %w", cfg.TenantID, err)
	}

	f.clients[cfg.TenantID] = cachedClient{fingerprint: fingerprint, client: client}
	return client, nil
}

// Evict drops the cached client of a tenant
func (f *Factory) Evict(tenantID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.clients, tenantID)
}

// Ensure Factory implements ClientFactory
var _ integration.ClientFactory = (*Factory)(nil)
