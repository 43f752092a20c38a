package fieldservice

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IntegrationConfig binds a tenant to its external ticketing system.
// The core only reads it, except for stamping LastSyncAt after a pass.
type IntegrationConfig struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	// BaseURL is the root of the external REST API, e.g. https://ets.example.com
	BaseURL string
	// EncodedToken is the API token as stored; decoding is delegated to a secrets codec
	EncodedToken string
	Active       bool
	// LastSyncAt is when the last fully successful reconciliation pass finished
	LastSyncAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewIntegrationConfig creates an active integration config
func NewIntegrationConfig(tenantID uuid.UUID, baseURL, encodedToken string) (*IntegrationConfig, error) {
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidIntegrationConfig)
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: base url %q is not an absolute http(s) url", ErrInvalidIntegrationConfig, baseURL)
	}
	if strings.TrimSpace(encodedToken) == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidIntegrationConfig)
	}
	now := time.Now()
	return &IntegrationConfig{
		ID:           uuid.New(),
		TenantID:     tenantID,
		BaseURL:      baseURL,
		EncodedToken: encodedToken,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IsUsable reports whether reconciliation and pushes may use this config
func (c *IntegrationConfig) IsUsable() bool {
	return c != nil && c.Active && c.BaseURL != "" && c.EncodedToken != ""
}

// MarkSynced stamps the last successful pass time
func (c *IntegrationConfig) MarkSynced(at time.Time) {
	c.LastSyncAt = &at
	c.UpdatedAt = at
}

// TechnicianMapping maps a local technician to the identity used by the
// external system. A technician without an active mapping is excluded from
// reconciliation.
type TechnicianMapping struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	TechnicianID int64
	// ExternalTechnicianID is the technician id on the external system
	ExternalTechnicianID string
	ExternalName         string
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewTechnicianMapping creates an active technician mapping
func NewTechnicianMapping(tenantID uuid.UUID, technicianID int64, externalID, externalName string) (*TechnicianMapping, error) {
	if tenantID == uuid.Nil {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidMapping)
	}
	if technicianID <= 0 {
		return nil, fmt.Errorf("%w: technician id must be positive", ErrInvalidMapping)
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("%w: external technician id is required", ErrInvalidMapping)
	}
	now := time.Now()
	return &TechnicianMapping{
		ID:                   uuid.New(),
		TenantID:             tenantID,
		TechnicianID:         technicianID,
		ExternalTechnicianID: externalID,
		ExternalName:         strings.TrimSpace(externalName),
		Active:               true,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}
