package integration

import (
	"context"

	"github.com/fieldops/backend/internal/domain/fieldservice"
)

// TransactionScope provides transactional access to the reconciliation repositories.
// A reconciliation pass applies one tenant's changes inside a single scope.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to repositories sharing one transaction.
type TransactionalRepositories interface {
	ServiceOrders() fieldservice.ServiceOrderRepository
	IntegrationConfigs() fieldservice.IntegrationConfigRepository
	// Savepoint runs fn in a nested transaction. When fn fails only its own
	// writes are rolled back; the enclosing transaction stays usable.
	Savepoint(fn func(repos TransactionalRepositories) error) error
}

// NoOpTransactionScope is a transaction scope that doesn't actually use transactions.
// Savepoints give no isolation either.
type NoOpTransactionScope struct {
	orders  fieldservice.ServiceOrderRepository
	configs fieldservice.IntegrationConfigRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(orders fieldservice.ServiceOrderRepository, configs fieldservice.IntegrationConfigRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{orders: orders, configs: configs}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ServiceOrders returns the service order repository.
func (s *NoOpTransactionScope) ServiceOrders() fieldservice.ServiceOrderRepository {
	return s.orders
}

// IntegrationConfigs returns the integration config repository.
func (s *NoOpTransactionScope) IntegrationConfigs() fieldservice.IntegrationConfigRepository {
	return s.configs
}

// Savepoint runs fn directly
func (s *NoOpTransactionScope) Savepoint(fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
