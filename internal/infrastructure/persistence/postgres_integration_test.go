//go:build integration

package persistence

import (
	"context"
	"testing"
	"time"

	appintegration "github.com/fieldops/backend/internal/application/integration"
	"github.com/fieldops/backend/internal/domain/fieldservice"
	"github.com/fieldops/backend/internal/domain/shared"
	"github.com/fieldops/backend/internal/infrastructure/migration"
	"github.com/fieldops/backend/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresDB starts a PostgreSQL container and applies the embedded
// migrations, so repositories run against the production schema
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fieldops_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	m, err := migration.New(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return db
}

func TestPostgres_ServiceOrderRepository(t *testing.T) {
	db := newPostgresDB(t)
	repo := NewGormServiceOrderRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	order := newExternalOrder(t, tenantID, "900", 7)
	require.NoError(t, repo.Create(ctx, order))

	t.Run("duplicate external id maps to already exists", func(t *testing.T) {
		err := repo.Create(ctx, newExternalOrder(t, tenantID, "900", 8))
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	t.Run("local orders share the null external id", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			local, err := fieldservice.NewLocalServiceOrder(tenantID, 3, "Vistoria", fieldservice.OrderPriorityLow, fieldservice.CustomerSnapshot{})
			require.NoError(t, err)
			require.NoError(t, repo.Create(ctx, local))
		}
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		stale, err := repo.FindByID(ctx, tenantID, order.ID)
		require.NoError(t, err)

		require.NoError(t, order.Complete("cabo trocado", "1x conector", time.Now()))
		require.NoError(t, repo.Save(ctx, order))

		require.NoError(t, stale.Complete("outro", "", time.Now()))
		assert.ErrorIs(t, repo.Save(ctx, stale), shared.ErrConcurrencyConflict)
	})

	t.Run("sync failures are listed", func(t *testing.T) {
		order.RecordSyncFailure("ETS timeout")
		require.NoError(t, repo.UpdateSyncState(ctx, order))

		failures, err := repo.ListSyncFailures(ctx, tenantID, 10)
		require.NoError(t, err)
		require.Len(t, failures, 1)
		assert.Equal(t, order.ID, failures[0].ID)
		assert.Equal(t, 1, failures[0].SyncAttempts)
	})
}

func TestPostgres_ReconcileSavepointRollsBackOnlyItsTechnician(t *testing.T) {
	db := newPostgresDB(t)
	scope := NewGormReconcileTransactionScope(db)
	repo := NewGormServiceOrderRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	err := scope.Execute(ctx, func(repos appintegration.TransactionalRepositories) error {
		require.NoError(t, repos.Savepoint(func(r appintegration.TransactionalRepositories) error {
			return r.ServiceOrders().Create(ctx, newExternalOrder(t, tenantID, "1", 7))
		}))
		failed := repos.Savepoint(func(r appintegration.TransactionalRepositories) error {
			if err := r.ServiceOrders().Create(ctx, newExternalOrder(t, tenantID, "2", 8)); err != nil {
				return err
			}
			// duplicate inside the same savepoint aborts it
			return r.ServiceOrders().Create(ctx, newExternalOrder(t, tenantID, "2", 8))
		})
		assert.Error(t, failed)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.FindByExternalID(ctx, tenantID, "1")
	assert.NoError(t, err)
	_, err = repo.FindByExternalID(ctx, tenantID, "2")
	assert.ErrorIs(t, err, fieldservice.ErrServiceOrderNotFound)
}
