package persistence

import (
	"context"
	"errors"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTechnicianMappingRepository implements TechnicianMappingRepository using GORM
type GormTechnicianMappingRepository struct {
	db *gorm.DB
}

// NewGormTechnicianMappingRepository creates a new GormTechnicianMappingRepository
func NewGormTechnicianMappingRepository(db *gorm.DB) *GormTechnicianMappingRepository {
	return &GormTechnicianMappingRepository{db: db}
}

// FindActiveByTenant returns the active mappings of a tenant ordered by technician id
func (r *GormTechnicianMappingRepository) FindActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]fieldservice.TechnicianMapping, error) {
	var mappingModels []models.TechnicianMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("technician_id ASC").
		Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]fieldservice.TechnicianMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = *model.ToDomain()
	}
	return mappings, nil
}

// FindByTechnician returns the active mapping of a local technician
func (r *GormTechnicianMappingRepository) FindByTechnician(ctx context.Context, tenantID uuid.UUID, technicianID int64) (*fieldservice.TechnicianMapping, error) {
	var model models.TechnicianMappingModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND technician_id = ? AND active = ?", tenantID, technicianID, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldservice.ErrMappingMissing
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save upserts a mapping keyed by (tenant, technician)
func (r *GormTechnicianMappingRepository) Save(ctx context.Context, mapping *fieldservice.TechnicianMapping) error {
	model := models.TechnicianMappingModelFromDomain(mapping)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "technician_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"external_technician_id", "external_name", "active", "updated_at"}),
		}).
		Create(model).Error
}

// Ensure GormTechnicianMappingRepository implements TechnicianMappingRepository
var _ fieldservice.TechnicianMappingRepository = (*GormTechnicianMappingRepository)(nil)
