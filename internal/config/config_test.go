package config_test

import (
	"testing"
	"time"

	"bes-loan/internal/adapters/persistence/models"
	"bes-loan/internal/config"
	"bes-loan/internal/pkg/logger"
	"bes-loan/internal/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_MODE", "dev")
	t.Setenv("DB_DRIVER", "sqlite")

	cfg, err := config.Load(config.ServicePayment)
	require.NoError(t, err)

	assert.Equal(t, config.ServicePayment, cfg.Service)
	assert.Equal(t, "3003", cfg.Port)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "./data/payment.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.LoanCall.Timeout)
	assert.Equal(t, time.Minute, cfg.JWT.ServiceTokenTTL)
	assert.True(t, cfg.Reconcile.Enabled)
	assert.Equal(t, "@every 1m", cfg.Reconcile.Schedule)
	assert.Equal(t, 100, cfg.Reconcile.BatchSize)
	assert.Equal(t, "*", cfg.GetAllowedOrigins())
}

func TestLoadServiceOverrides(t *testing.T) {
	t.Setenv("APP_MODE", "dev")
	t.Setenv("LOAN_PORT", "9002")
	t.Setenv("DEV_LOAN_DB_DRIVER", "mysql")
	t.Setenv("DEV_LOAN_DB_NAME", "ledger")
	t.Setenv("LOAN_SERVICE_URL", "http://loan:3002/")
	t.Setenv("LOAN_CALL_TIMEOUT", "750ms")
	t.Setenv("RECONCILE_ENABLED", "false")
	t.Setenv("RECONCILE_BATCH_SIZE", "-1")
	t.Setenv("RATE_LIMIT_MAX", "0")

	cfg, err := config.Load(config.ServiceLoan)
	require.NoError(t, err)

	assert.Equal(t, "9002", cfg.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "ledger", cfg.Database.DBName)
	assert.Equal(t, "http://loan:3002", cfg.Services.LoanURL)
	assert.Equal(t, 750*time.Millisecond, cfg.LoanCall.Timeout)
	assert.False(t, cfg.Reconcile.Enabled)
	assert.Equal(t, 100, cfg.Reconcile.BatchSize)
	assert.Zero(t, cfg.RateLimit)
}

func TestLoadRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name    string
		service string
		env     map[string]string
	}{
		{"unknown service", "billing", nil},
		{"unknown mode", config.ServiceAuth, map[string]string{"APP_MODE": "staging"}},
		{"unknown driver", config.ServiceAuth, map[string]string{"DB_DRIVER": "postgres"}},
		{"prod without secret", config.ServiceAuth, map[string]string{"APP_MODE": "prod"}},
		{"non-positive call timeout", config.ServicePayment, map[string]string{"LOAN_CALL_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_MODE", "dev")
			t.Setenv("DB_DRIVER", "sqlite")
			t.Setenv("PROD_JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := config.Load(tt.service)
			assert.Error(t, err)
		})
	}
}

func TestSeederCreatesDemoUserOnce(t *testing.T) {
	db := testdb.Open(t, models.MigrateAuth)
	seeder := config.NewSeeder(db, logger.Discard())

	require.NoError(t, seeder.Run())
	require.NoError(t, seeder.Run())

	var users []models.User
	require.NoError(t, db.Where("username = ?", config.DemoUsername).Find(&users).Error)
	require.Len(t, users, 1)
	assert.Equal(t, "3000", users[0].MonthlyIncome.String())
	assert.NotEqual(t, "demo123456", users[0].Password)
}
