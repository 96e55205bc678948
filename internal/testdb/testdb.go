// Package testdb opens throwaway sqlite databases for tests.
package testdb

import (
	"path/filepath"
	"testing"

	"bes-loan/internal/adapters/persistence/models"
	"bes-loan/internal/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open creates a migrated sqlite database in t's temp dir and closes it on cleanup.
// migrate selects the service schema (models.MigrateLoan, models.MigratePayment, ...).
func Open(t testing.TB, migrate ...func(*gorm.DB) error) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(config.SQLiteDSN(path)), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if len(migrate) == 0 {
		migrate = []func(*gorm.DB) error{models.MigrateAuth, models.MigrateLoan, models.MigratePayment}
	}
	for _, m := range migrate {
		if err := m(db); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = config.CloseDatabase(db)
	})
	return db
}
