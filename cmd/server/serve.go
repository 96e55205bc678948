package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"bes-loan/internal/adapters/http/middleware"
	"bes-loan/internal/adapters/http/routes"
	"bes-loan/internal/adapters/persistence/repositories"
	"bes-loan/internal/config"
	"bes-loan/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// reconcilePassTimeout bounds one scheduled reconciliation pass
const reconcilePassTimeout = 5 * time.Minute

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "serve <auth|loan|payment|gateway>",
		Short:     "Run one service over HTTP",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{config.ServiceAuth, config.ServiceLoan, config.ServicePayment, config.ServiceGateway},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(args[0])
		},
	}
}

func serve(service string) error {
	cfg, log, err := bootstrap(service)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:      "bes-loan " + service,
		ErrorHandler: middleware.CustomErrorHandler,
	})
	middleware.Setup(app, cfg)

	var db *gorm.DB
	if service != config.ServiceGateway {
		if db, err = openStore(cfg, log); err != nil {
			return err
		}
		defer func() {
			if err := config.CloseDatabase(db); err != nil {
				log.WithError(err).Warn("failed to close database")
			}
		}()
	}

	gate := newAccessGate(cfg)

	switch service {
	case config.ServiceAuth:
		if cfg.IsDev() {
			if err := config.NewSeeder(db, log).Run(); err != nil {
				log.WithError(err).Warn("seeding failed")
			}
		}
		authService := services.NewAuthService(repositories.NewUserRepository(db), gate, log)
		routes.SetupAuth(app, cfg, db, gate, authService)

	case config.ServiceLoan:
		loanService := services.NewLoanService(repositories.NewLoanRepository(db), services.DefaultLoanPolicy(), log)
		routes.SetupLoan(app, cfg, db, gate, loanService)

	case config.ServicePayment:
		stack := newPaymentStack(cfg, db, gate, log)
		routes.SetupPayment(app, cfg, db, gate, stack.payments, stack.reconcile)

		if cfg.Reconcile.Enabled {
			cronService, err := services.NewCronService(stack.reconcile, cfg.Reconcile.Schedule, reconcilePassTimeout, log)
			if err != nil {
				return err
			}
			cronService.Start()
			defer cronService.Stop()
		}

	case config.ServiceGateway:
		routes.SetupGateway(app, cfg, log)

	default:
		return fmt.Errorf("unknown service: %s", service)
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info("shutting down server")
		if err := app.Shutdown(); err != nil {
			log.WithError(err).Error("error during shutdown")
		}
	}()

	log.WithField("port", cfg.Port).WithField("mode", cfg.AppMode).Info("server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}
