package persistence

import (
	"github.com/fieldops/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// Models returns every persistence model of the reconciliation schema
func Models() []any {
	return []any{
		&models.IntegrationConfigModel{},
		&models.TechnicianMappingModel{},
		&models.ServiceOrderModel{},
	}
}

// AutoMigrate creates or updates the reconciliation tables on db
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
