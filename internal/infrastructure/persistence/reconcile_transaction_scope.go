package persistence

import (
	"context"

	appintegration "github.com/fieldops/backend/internal/application/integration"
	"github.com/fieldops/backend/internal/domain/fieldservice"
	"gorm.io/gorm"
)

// GormReconcileTransactionScope implements TransactionScope using GORM transactions.
// Savepoints map to GORM nested transactions (SAVEPOINT / ROLLBACK TO).
type GormReconcileTransactionScope struct {
	db *gorm.DB
}

// NewGormReconcileTransactionScope creates a new GormReconcileTransactionScope.
func NewGormReconcileTransactionScope(db *gorm.DB) *GormReconcileTransactionScope {
	return &GormReconcileTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
func (s *GormReconcileTransactionScope) Execute(ctx context.Context, fn func(repos appintegration.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormReconcileRepositories{tx: tx})
	})
}

// gormReconcileRepositories provides access to all repositories within a transaction.
type gormReconcileRepositories struct {
	tx *gorm.DB
}

// ServiceOrders returns the service order repository scoped to the current transaction.
func (r *gormReconcileRepositories) ServiceOrders() fieldservice.ServiceOrderRepository {
	return NewGormServiceOrderRepository(r.tx)
}

// IntegrationConfigs returns the integration config repository scoped to the current transaction.
func (r *gormReconcileRepositories) IntegrationConfigs() fieldservice.IntegrationConfigRepository {
	return NewGormIntegrationConfigRepository(r.tx)
}

// Savepoint runs fn in a nested transaction of the current one.
func (r *gormReconcileRepositories) Savepoint(fn func(repos appintegration.TransactionalRepositories) error) error {
	return r.tx.Transaction(func(nested *gorm.DB) error {
		return fn(&gormReconcileRepositories{tx: nested})
	})
}

// Ensure GormReconcileTransactionScope implements TransactionScope
var _ appintegration.TransactionScope = (*GormReconcileTransactionScope)(nil)

// Ensure gormReconcileRepositories implements TransactionalRepositories
var _ appintegration.TransactionalRepositories = (*gormReconcileRepositories)(nil)
