package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "fieldops-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "fieldops", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
		assert.Equal(t, 20.0, cfg.HTTP.RateLimitRPS)
		assert.Equal(t, 40, cfg.HTTP.RateLimitBurst)
		assert.Equal(t, 24*time.Hour, cfg.HTTP.IdempotencyTTL)

		assert.Equal(t, 30*time.Second, cfg.ETS.Timeout)
		assert.Equal(t, 100, cfg.ETS.PageSize)
		assert.Equal(t, 3, cfg.ETS.RetryMaxAttempts)
		assert.Equal(t, 5.0, cfg.ETS.RateLimitQPS)

		assert.Equal(t, 5*time.Minute, cfg.Reconciler.Interval)
		assert.Zero(t, cfg.Reconciler.TenantTimeout, "tenant passes are bounded by per-call timeouts only")
		assert.Equal(t, 4, cfg.Reconciler.TechnicianConcurrency)
		assert.Equal(t, "fieldops:reconcile:sweep", cfg.Reconciler.LockKey)
		assert.Equal(t, "base64", cfg.Secrets.Codec)
		assert.Equal(t, "fieldops-backend", cfg.Telemetry.ServiceName)
	})

	t.Run("loads values from environment variables with FIELDOPS prefix", func(t *testing.T) {
		t.Setenv("FIELDOPS_APP_NAME", "test-app")
		t.Setenv("FIELDOPS_APP_PORT", "9000")
		t.Setenv("FIELDOPS_DATABASE_DRIVER", "sqlite")
		t.Setenv("FIELDOPS_DATABASE_DBNAME", ":memory:")
		t.Setenv("FIELDOPS_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("FIELDOPS_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("FIELDOPS_ETS_TIMEOUT", "5s")
		t.Setenv("FIELDOPS_ETS_RATE_LIMIT_QPS", "2.5")
		t.Setenv("FIELDOPS_RECONCILER_INTERVAL", "90s")
		t.Setenv("FIELDOPS_RECONCILER_FETCH_CUSTOMERS", "true")
		t.Setenv("FIELDOPS_HTTP_RATE_LIMIT_RPS", "-1")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, ":memory:", cfg.Database.DBName)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.Equal(t, -1.0, cfg.HTTP.RateLimitRPS)
		assert.Equal(t, 5*time.Second, cfg.ETS.Timeout)
		assert.Equal(t, 2.5, cfg.ETS.RateLimitQPS)
		assert.Equal(t, 90*time.Second, cfg.Reconciler.Interval)
		assert.True(t, cfg.Reconciler.FetchCustomers)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		t.Setenv("FIELDOPS_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("FIELDOPS_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown driver", func(t *testing.T) {
		t.Setenv("FIELDOPS_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects sub-second reconcile interval", func(t *testing.T) {
		t.Setenv("FIELDOPS_RECONCILER_INTERVAL", "100ms")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reconciler.interval")
	})

	t.Run("distributed lock requires redis", func(t *testing.T) {
		t.Setenv("FIELDOPS_RECONCILER_DISTRIBUTED_LOCK", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "requires redis.enabled")

		t.Setenv("FIELDOPS_REDIS_ENABLED", "true")
		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.Reconciler.DistributedLock)
	})

	t.Run("secretbox codec requires a key", func(t *testing.T) {
		t.Setenv("FIELDOPS_SECRETS_CODEC", "secretbox")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secrets.key")

		t.Setenv("FIELDOPS_SECRETS_KEY", "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
		_, err = Load()
		assert.NoError(t, err)
	})

	t.Run("rejects unknown codec", func(t *testing.T) {
		t.Setenv("FIELDOPS_SECRETS_CODEC", "rot13")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secrets.codec")
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func(t *testing.T) {
		t.Setenv("FIELDOPS_APP_ENV", "production")
		t.Setenv("FIELDOPS_DATABASE_PASSWORD", "secure-password")
		t.Setenv("FIELDOPS_DATABASE_SSLMODE", "require")
	}

	t.Run("passes validation with valid production config", func(t *testing.T) {
		setValidProductionBase(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})

	t.Run("requires database.password in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("FIELDOPS_DATABASE_PASSWORD", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("FIELDOPS_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects sqlite in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("FIELDOPS_DATABASE_DRIVER", "sqlite")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be postgres in production")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		setValidProductionBase(t)
		t.Setenv("FIELDOPS_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost")
		assert.Contains(t, dsn, "5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "testdb")
		assert.Contains(t, dsn, "sslmode=disable")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})
}
