package persistence

import (
	"context"
	"errors"

	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormServiceOrderRepository implements ServiceOrderRepository using GORM
type GormServiceOrderRepository struct {
	db *gorm.DB
}

// NewGormServiceOrderRepository creates a new GormServiceOrderRepository
func NewGormServiceOrderRepository(db *gorm.DB) *GormServiceOrderRepository {
	return &GormServiceOrderRepository{db: db}
}

// syncSuccessColumns are written when a push succeeds; sync_attempts never decreases
var syncSuccessColumns = []string{"sync_error", "synced_at", "updated_at"}

// FindByID finds an order by ID within a tenant
func (r *GormServiceOrderRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*fieldservice.ServiceOrder, error) {
	var model models.ServiceOrderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldservice.ErrServiceOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalID finds an order by its external ticket id
func (r *GormServiceOrderRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*fieldservice.ServiceOrder, error) {
	var model models.ServiceOrderModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fieldservice.ErrServiceOrderNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new order. A duplicate (tenant, external id) surfaces as
// shared.ErrAlreadyExists.
func (r *GormServiceOrderRepository) Create(ctx context.Context, order *fieldservice.ServiceOrder) error {
	model := models.ServiceOrderModelFromDomain(order)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateWriteError(err)
	}
	return nil
}

// Save writes a changed order. The domain bumps Version once per change, so
// the stored row must still hold Version-1; anything else means another
// writer got there first and shared.ErrConcurrencyConflict is returned.
func (r *GormServiceOrderRepository) Save(ctx context.Context, order *fieldservice.ServiceOrder) error {
	model := models.ServiceOrderModelFromDomain(order)
	result := r.db.WithContext(ctx).
		Model(&models.ServiceOrderModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", order.ID, order.TenantID, order.Version-1).
		Select("*").
		Omit("id", "tenant_id", "created_at").
		Updates(model)
	if result.Error != nil {
		return translateWriteError(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ServiceOrderModel{}).
		Where("id = ? AND tenant_id = ?", order.ID, order.TenantID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fieldservice.ErrServiceOrderNotFound
	}
	return shared.ErrConcurrencyConflict
}

// UpdateSyncState writes only the outbound sync bookkeeping of the order.
// A failure increments the stored attempt counter in place, so concurrent
// retries never lose a count, and order.SyncAttempts is refreshed from it.
func (r *GormServiceOrderRepository) UpdateSyncState(ctx context.Context, order *fieldservice.ServiceOrder) error {
	model := models.ServiceOrderModelFromDomain(order)
	query := r.db.WithContext(ctx).
		Model(&models.ServiceOrderModel{}).
		Where("id = ? AND tenant_id = ?", order.ID, order.TenantID)

	var result *gorm.DB
	if order.SyncError == nil {
		result = query.Select(syncSuccessColumns).Updates(model)
	} else {
		result = query.Updates(map[string]any{
			"sync_error":    model.SyncError,
			"sync_attempts": gorm.Expr("sync_attempts + ?", 1),
			"updated_at":    model.UpdatedAt,
		})
	}
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fieldservice.ErrServiceOrderNotFound
	}
	if order.SyncError == nil {
		return nil
	}

	var attempts []int
	if err := r.db.WithContext(ctx).
		Model(&models.ServiceOrderModel{}).
		Where("id = ? AND tenant_id = ?", order.ID, order.TenantID).
		Pluck("sync_attempts", &attempts).Error; err != nil {
		return err
	}
	if len(attempts) == 1 {
		order.SyncAttempts = attempts[0]
	}
	return nil
}

// ListSyncFailures returns orders whose last outbound push failed, oldest first
func (r *GormServiceOrderRepository) ListSyncFailures(ctx context.Context, tenantID uuid.UUID, limit int) ([]fieldservice.ServiceOrder, error) {
	var orderModels []models.ServiceOrderModel
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND sync_error IS NOT NULL", tenantID).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&orderModels).Error; err != nil {
		return nil, err
	}

	orders := make([]fieldservice.ServiceOrder, len(orderModels))
	for i, model := range orderModels {
		orders[i] = *model.ToDomain()
	}
	return orders, nil
}

// CountByTenant counts the orders of a tenant
func (r *GormServiceOrderRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ServiceOrderModel{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure GormServiceOrderRepository implements ServiceOrderRepository
var _ fieldservice.ServiceOrderRepository = (*GormServiceOrderRepository)(nil)
