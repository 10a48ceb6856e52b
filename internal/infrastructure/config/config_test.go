package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearRentalEnv unsets every RENTAL_ variable for the duration of the test
func clearRentalEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "RENTAL_") {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearRentalEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "rental-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "rental", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.True(t, cfg.Ledger.Enabled)
		assert.Equal(t, "BRL", cfg.Ledger.Currency)
		assert.True(t, cfg.Idempotency.Enabled)
		assert.Equal(t, "memory", cfg.Idempotency.Backend)
		assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
		assert.True(t, cfg.Scheduler.Enabled)
		assert.Equal(t, "0 * * * *", cfg.Scheduler.OverdueCron)
		assert.Equal(t, "rental-backend", cfg.Telemetry.ServiceName)
		assert.Equal(t, 200*time.Millisecond, cfg.Telemetry.DBSlowQueryThresh)
	})

	t.Run("loads values from environment variables with RENTAL prefix", func(t *testing.T) {
		clearRentalEnv(t)
		t.Setenv("RENTAL_APP_NAME", "test-app")
		t.Setenv("RENTAL_APP_PORT", "9000")
		t.Setenv("RENTAL_DATABASE_DRIVER", "sqlite")
		t.Setenv("RENTAL_DATABASE_PATH", ":memory:")
		t.Setenv("RENTAL_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("RENTAL_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("RENTAL_LEDGER_ENABLED", "false")
		t.Setenv("RENTAL_IDEMPOTENCY_BACKEND", "redis")
		t.Setenv("RENTAL_IDEMPOTENCY_TTL", "1h")
		t.Setenv("RENTAL_SCHEDULER_OVERDUE_CRON", "*/5 * * * *")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "test-app", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, ":memory:", cfg.Database.Path)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 10, cfg.Database.MaxIdleConns)
		assert.False(t, cfg.Ledger.Enabled)
		assert.Equal(t, "redis", cfg.Idempotency.Backend)
		assert.Equal(t, time.Hour, cfg.Idempotency.TTL)
		assert.Equal(t, "*/5 * * * *", cfg.Scheduler.OverdueCron)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearRentalEnv(t)
		t.Setenv("RENTAL_DATABASE_MAX_OPEN_CONNS", "10")
		t.Setenv("RENTAL_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects unknown database driver", func(t *testing.T) {
		clearRentalEnv(t)
		t.Setenv("RENTAL_DATABASE_DRIVER", "mysql")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.driver")
	})

	t.Run("rejects unknown idempotency backend", func(t *testing.T) {
		clearRentalEnv(t)
		t.Setenv("RENTAL_IDEMPOTENCY_BACKEND", "memcached")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idempotency.backend")
	})

	t.Run("auth requires a secret when enabled", func(t *testing.T) {
		clearRentalEnv(t)
		t.Setenv("RENTAL_AUTH_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auth.secret")
	})

	t.Run("rejects sampling ratio above one", func(t *testing.T) {
		clearRentalEnv(t)
		t.Setenv("RENTAL_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})
}

func TestValidate_Production(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			App:      AppConfig{Env: "production"},
			Database: DatabaseConfig{Driver: "postgres", Password: "secret", SSLMode: "require"},
			Auth:     AuthConfig{Enabled: true, Secret: strings.Repeat("x", 32)},
		}
		applyDefaults(cfg)
		return cfg
	}

	t.Run("accepts a complete production config", func(t *testing.T) {
		assert.NoError(t, valid().validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"auth disabled", func(c *Config) { c.Auth.Enabled = false }, "auth.enabled"},
		{"short secret", func(c *Config) { c.Auth.Secret = "short" }, "32 characters"},
		{"sqlite", func(c *Config) { c.Database.Driver = "sqlite" }, "must be postgres"},
		{"no db password", func(c *Config) { c.Database.Password = "" }, "database.password"},
		{"sslmode disable", func(c *Config) { c.Database.SSLMode = "disable" }, "sslmode"},
		{"wildcard cors", func(c *Config) { c.HTTP.CORSAllowOrigins = []string{"*"} }, "cors_allow_origins"},
		{"full sql in traces", func(c *Config) { c.Telemetry.DBLogFullSQL = true }, "db_log_full_sql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss word", DBName: "rental", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/rental?sslmode=disable", d.DSN())
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}
