package main

import (
	"fmt"

	"bes-loan/internal/adapters/downstream"
	"bes-loan/internal/adapters/persistence/models"
	"bes-loan/internal/adapters/persistence/repositories"
	"bes-loan/internal/config"
	"bes-loan/internal/core/services"
	"bes-loan/internal/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var migrations = map[string]func(*gorm.DB) error{
	config.ServiceAuth:    models.MigrateAuth,
	config.ServiceLoan:    models.MigrateLoan,
	config.ServicePayment: models.MigratePayment,
}

// bootstrap loads configuration and the process logger for service
func bootstrap(service string) (*config.Config, *logrus.Entry, error) {
	cfg, err := config.Load(service)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log := logger.New(cfg.AppMode, cfg.LogLevel).WithField("service", service)
	return cfg, log, nil
}

// openStore connects the service's own database and migrates its tables
func openStore(cfg *config.Config, log logrus.FieldLogger) (*gorm.DB, error) {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if migrate, ok := migrations[cfg.Service]; ok {
		if err := migrate(db); err != nil {
			_ = config.CloseDatabase(db)
			return nil, fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	log.WithField("driver", cfg.Database.Driver).Info("database ready")
	return db, nil
}

func newAccessGate(cfg *config.Config) *services.AccessGate {
	return services.NewAccessGate(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL, cfg.JWT.ServiceTokenTTL)
}

// paymentStack is the payment service's engines over one store
type paymentStack struct {
	payments  *services.PaymentService
	reconcile *services.ReconcileService
}

func newPaymentStack(cfg *config.Config, db *gorm.DB, gate *services.AccessGate, log logrus.FieldLogger) *paymentStack {
	repo := repositories.NewPaymentRepository(db)
	ledger := downstream.NewLoanClient(cfg.Services.LoanURL, gate, cfg.LoanCall.Timeout, log)
	payments := services.NewPaymentService(repo, ledger, cfg.LoanCall.Timeout, log)

	return &paymentStack{
		payments:  payments,
		reconcile: services.NewReconcileService(repo, payments, cfg.Reconcile.BatchSize, log),
	}
}
