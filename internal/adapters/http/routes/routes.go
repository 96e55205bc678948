package routes

import (
	"time"

	"bes-loan/internal/adapters/http/handlers"
	"bes-loan/internal/adapters/http/middleware"
	"bes-loan/internal/config"
	"bes-loan/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SetupAuth configures the auth service routes
func SetupAuth(app *fiber.App, cfg *config.Config, db *gorm.DB, gate services.Authenticator, authService *services.AuthService) {
	setupHealthRoutes(app, cfg, db)

	authHandler := handlers.NewAuthHandler(authService, cfg)

	router := app.Group("/api/auth", middleware.NoCacheHeaders())

	// Public routes
	router.Post("/register", middleware.AuthRateLimiter(), authHandler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	router.Post("/logout", authHandler.Logout)

	// Protected routes
	router.Get("/me", middleware.AuthMiddleware(gate), middleware.PrivateCacheHeaders(30*time.Second), authHandler.Me)
}

// SetupLoan configures the loan service routes
func SetupLoan(app *fiber.App, cfg *config.Config, db *gorm.DB, gate services.Authenticator, loanService *services.LoanService) {
	setupHealthRoutes(app, cfg, db)

	loanHandler := handlers.NewLoanHandler(loanService)

	router := app.Group("/api/loans", middleware.NoCacheHeaders(), middleware.AuthMiddleware(gate))
	router.Post("/", loanHandler.Create)
	router.Get("/", loanHandler.List)
	router.Get("/:id", loanHandler.Get)
	router.Put("/:id/status", loanHandler.UpdateStatus)

	// Ledger API, only reachable with the payment service's on-behalf-of credentials
	ledger := middleware.ServiceOnly()
	router.Put("/:id/payment", ledger, loanHandler.ApplyPayment)
	router.Get("/:id/payments/:token", ledger, loanHandler.GetAppliedPayment)
}

// SetupPayment configures the payment service routes
func SetupPayment(
	app *fiber.App,
	cfg *config.Config,
	db *gorm.DB,
	gate services.Authenticator,
	paymentService *services.PaymentService,
	reconcileService *services.ReconcileService,
) {
	setupHealthRoutes(app, cfg, db)

	paymentHandler := handlers.NewPaymentHandler(paymentService, reconcileService)

	router := app.Group("/api/payments", middleware.NoCacheHeaders(), middleware.AuthMiddleware(gate))
	router.Post("/", paymentHandler.Create)
	router.Get("/", paymentHandler.List)
	router.Get("/loan/:loanId", paymentHandler.ListByLoan)

	// Reconciliation (registered before /:id). Users see and retry their own payments;
	// a full pass needs service credentials.
	router.Get("/unsettled", paymentHandler.ListUnsettled)
	router.Post("/reconcile", middleware.ServiceOnly(), middleware.StrictRateLimiter(), paymentHandler.ReconcileAll)
	router.Post("/:id/reconcile", paymentHandler.ReconcileOne)

	router.Get("/:id", paymentHandler.Get)
}

// SetupGateway configures the gateway: every API prefix is forwarded to its service
func SetupGateway(app *fiber.App, cfg *config.Config, log logrus.FieldLogger) {
	setupHealthRoutes(app, cfg, nil)

	gatewayHandler := handlers.NewGatewayHandler(cfg.Services, cfg.LoanCall.Timeout*2, log)

	app.All("/api/auth", gatewayHandler.Auth)
	app.All("/api/auth/*", gatewayHandler.Auth)
	app.All("/api/loans", gatewayHandler.Loans)
	app.All("/api/loans/*", gatewayHandler.Loans)
	app.All("/api/payments", gatewayHandler.Payments)
	app.All("/api/payments/*", gatewayHandler.Payments)
}

// setupHealthRoutes configures health check & root routes
func setupHealthRoutes(app *fiber.App, cfg *config.Config, db *gorm.DB) {
	healthHandler := handlers.NewHealthHandler(cfg, db)
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
}
