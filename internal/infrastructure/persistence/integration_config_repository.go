package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormIntegrationConfigRepository implements IntegrationConfigRepository using GORM
type GormIntegrationConfigRepository struct {
	db *gorm.DB
}

// NewGormIntegrationConfigRepository creates a new GormIntegrationConfigRepository
func NewGormIntegrationConfigRepository(db *gorm.DB) *GormIntegrationConfigRepository {
	return &GormIntegrationConfigRepository{db: db}
}

// FindByTenant finds the integration config of a tenant
func (r *GormIntegrationConfigRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*fieldservice.IntegrationConfig, error) {
	var model models.IntegrationConfigModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldservice.ErrConfigMissing
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns every active config ordered by tenant id
func (r *GormIntegrationConfigRepository) FindActive(ctx context.Context) ([]fieldservice.IntegrationConfig, error) {
	var configModels []models.IntegrationConfigModel
	if err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("tenant_id ASC").
		Find(&configModels).Error; err != nil {
		return nil, err
	}

	configs := make([]fieldservice.IntegrationConfig, len(configModels))
	for i, model := range configModels {
		configs[i] = *model.ToDomain()
	}
	return configs, nil
}

// UpdateLastSyncAt stamps the last successful pass time
func (r *GormIntegrationConfigRepository) UpdateLastSyncAt(ctx context.Context, tenantID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.IntegrationConfigModel{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]any{"last_sync_at": at, "updated_at": at})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fieldservice.ErrConfigMissing
	}
	return nil
}

// Save upserts the config of a tenant
func (r *GormIntegrationConfigRepository) Save(ctx context.Context, cfg *fieldservice.IntegrationConfig) error {
	model := models.IntegrationConfigModelFromDomain(cfg)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"base_url", "encoded_token", "active", "last_sync_at", "updated_at"}),
		}).
		Create(model).Error
}

// Ensure GormIntegrationConfigRepository implements IntegrationConfigRepository
var _ fieldservice.IntegrationConfigRepository = (*GormIntegrationConfigRepository)(nil)
