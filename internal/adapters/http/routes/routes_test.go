package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"bes-loan/internal/adapters/downstream"
	"bes-loan/internal/adapters/http/middleware"
	"bes-loan/internal/adapters/persistence/models"
	"bes-loan/internal/adapters/persistence/repositories"
	"bes-loan/internal/config"
	"bes-loan/internal/core/domain"
	"bes-loan/internal/core/services"
	"bes-loan/internal/pkg/logger"
	"bes-loan/internal/testdb"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const testSecret = "routes-test-secret"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

type balanceBody struct {
	ID              uint            `json:"id"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          string          `json:"status"`
	Replayed        bool            `json:"replayed"`
}

type loanBody struct {
	ID              uint            `json:"id"`
	UserID          uint            `json:"user_id"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          string          `json:"status"`
}

type paymentBody struct {
	ID            uint   `json:"id"`
	LoanID        uint   `json:"loan_id"`
	TransactionID string `json:"transaction_id"`
	Settlement    *struct {
		Status        string `json:"status"`
		Attempts      int    `json:"attempts"`
		LastErrorKind string `json:"last_error_kind"`
	} `json:"settlement"`
}

type outcomeBody struct {
	Status  string       `json:"status"`
	Payment paymentBody  `json:"payment"`
	Loan    *balanceBody `json:"loan"`
	Kind    string       `json:"kind"`
}

func testConfig(service string) *config.Config {
	return &config.Config{
		AppMode: "dev",
		Service: service,
		JWT: config.JWTConfig{
			Secret:          testSecret,
			AccessTokenTTL:  time.Hour,
			ServiceTokenTTL: time.Minute,
		},
		LoanCall:  config.LoanCallConfig{Timeout: 2 * time.Second},
		Reconcile: config.ReconcileConfig{BatchSize: 100},
	}
}

func newGate() *services.AccessGate {
	return services.NewAccessGate(testSecret, time.Hour, time.Minute)
}

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
}

func token(t *testing.T, gate *services.AccessGate, userID uint) string {
	t.Helper()
	tok, err := gate.Issue(domain.CallerIdentity{
		UserID:        userID,
		Username:      "user" + strconv.Itoa(int(userID)),
		MonthlyIncome: decimal.NewFromInt(3000),
	})
	require.NoError(t, err)
	return tok
}

// serviceToken mints the credential the payment service presents on behalf of userID
func serviceToken(t *testing.T, gate *services.AccessGate, userID uint) string {
	t.Helper()
	tok, err := gate.IssueOnBehalfOf(domain.CallerIdentity{UserID: userID})
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, app *fiber.App, method, path, tok string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func dueIn(months int) string {
	return time.Now().UTC().AddDate(0, months, 0).Format("2006-01-02")
}

// newLoanApp serves the loan service over its own sqlite store
func newLoanApp(t *testing.T, gate *services.AccessGate) (*fiber.App, *gorm.DB) {
	t.Helper()
	db := testdb.Open(t, models.MigrateLoan)
	loanService := services.NewLoanService(repositories.NewLoanRepository(db), services.DefaultLoanPolicy(), logger.Discard())

	app := newApp()
	SetupLoan(app, testConfig(config.ServiceLoan), db, gate, loanService)
	return app, db
}

// openLoan creates a loan through the API and approves it
func openLoan(t *testing.T, app *fiber.App, tok, amount string) uint {
	t.Helper()

	status, env := call(t, app, http.MethodPost, "/api/loans", tok, fiber.Map{
		"amount":   amount,
		"purpose":  "Kitchen renovation",
		"due_date": dueIn(6),
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	var loan loanBody
	decode(t, env.Data, &loan)

	path := "/api/loans/" + strconv.Itoa(int(loan.ID)) + "/status"
	status, env = call(t, app, http.MethodPut, path, tok, fiber.Map{"status": "approved"})
	require.Equal(t, fiber.StatusOK, status, env.Error)
	return loan.ID
}

func TestHealthRoutes(t *testing.T) {
	gate := newGate()
	app, db := newLoanApp(t, gate)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, config.CloseDatabase(db))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestLoanRoutesRequireCredential(t *testing.T) {
	gate := newGate()
	app, _ := newLoanApp(t, gate)

	status, env := call(t, app, http.MethodGet, "/api/loans", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, string(domain.KindUnauthenticated), env.Kind)

	status, env = call(t, app, http.MethodGet, "/api/loans", "not-a-token", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, string(domain.KindUnauthenticated), env.Kind)

	foreign := services.NewAccessGate("another-secret", time.Hour, time.Minute)
	status, _ = call(t, app, http.MethodGet, "/api/loans", token(t, foreign, 1), nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestLoanRoutesLifecycle(t *testing.T) {
	gate := newGate()
	app, _ := newLoanApp(t, gate)
	owner := token(t, gate, 7)
	stranger := token(t, gate, 8)
	ownerService := serviceToken(t, gate, 7)

	loanID := openLoan(t, app, owner, "1000")
	base := "/api/loans/" + strconv.Itoa(int(loanID))

	t.Run("owner reads the loan", func(t *testing.T) {
		status, env := call(t, app, http.MethodGet, base, owner, nil)
		require.Equal(t, fiber.StatusOK, status)
		var loan loanBody
		decode(t, env.Data, &loan)
		assert.Equal(t, uint(7), loan.UserID)
		assert.Equal(t, "approved", loan.Status)
		assert.True(t, loan.RemainingAmount.Equal(decimal.NewFromInt(1000)))
	})

	t.Run("other users are forbidden", func(t *testing.T) {
		status, env := call(t, app, http.MethodGet, base, stranger, nil)
		assert.Equal(t, fiber.StatusForbidden, status)
		assert.Equal(t, string(domain.KindForbidden), env.Kind)

		status, _ = call(t, app, http.MethodPut, base+"/payment", serviceToken(t, gate, 8), fiber.Map{
			"amount": "10", "idempotency_token": "tok-x",
		})
		assert.Equal(t, fiber.StatusForbidden, status)
	})

	t.Run("user credentials cannot apply payments", func(t *testing.T) {
		status, env := call(t, app, http.MethodPut, base+"/payment", owner, fiber.Map{
			"amount": "1000", "idempotency_token": "tok-direct",
		})
		assert.Equal(t, fiber.StatusForbidden, status)
		assert.Equal(t, string(domain.KindForbidden), env.Kind)

		status, _ = call(t, app, http.MethodGet, base+"/payments/tok-direct", owner, nil)
		assert.Equal(t, fiber.StatusForbidden, status)

		_, env = call(t, app, http.MethodGet, base, owner, nil)
		var loan loanBody
		decode(t, env.Data, &loan)
		assert.Equal(t, "approved", loan.Status)
		assert.True(t, loan.RemainingAmount.Equal(decimal.NewFromInt(1000)))

		// the token was never recorded
		status, _ = call(t, app, http.MethodGet, base+"/payments/tok-direct", ownerService, nil)
		assert.Equal(t, fiber.StatusNotFound, status)
	})

	t.Run("list only returns own loans", func(t *testing.T) {
		_, env := call(t, app, http.MethodGet, "/api/loans", stranger, nil)
		var loans []loanBody
		decode(t, env.Data, &loans)
		assert.Empty(t, loans)

		_, env = call(t, app, http.MethodGet, "/api/loans", owner, nil)
		decode(t, env.Data, &loans)
		assert.Len(t, loans, 1)
	})

	t.Run("paid is reachable through payments only", func(t *testing.T) {
		status, env := call(t, app, http.MethodPut, base+"/status", owner, fiber.Map{"status": "paid"})
		assert.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, string(domain.KindInvalidState), env.Kind)

		status, env = call(t, app, http.MethodPut, base+"/status", owner, fiber.Map{"status": "closed"})
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, string(domain.KindInvalidStatus), env.Kind)
	})

	t.Run("payment decrements the balance", func(t *testing.T) {
		status, env := call(t, app, http.MethodPut, base+"/payment", ownerService, fiber.Map{
			"amount": "400", "idempotency_token": "tok-1",
		})
		require.Equal(t, fiber.StatusOK, status, env.Error)
		var balance balanceBody
		decode(t, env.Data, &balance)
		assert.Equal(t, loanID, balance.ID)
		assert.Equal(t, "active", balance.Status)
		assert.True(t, balance.RemainingAmount.Equal(decimal.NewFromInt(600)))
	})

	t.Run("replayed token answers AlreadyApplied with the balance", func(t *testing.T) {
		status, env := call(t, app, http.MethodPut, base+"/payment", ownerService, fiber.Map{
			"amount": "400", "idempotency_token": "tok-1",
		})
		require.Equal(t, fiber.StatusConflict, status)
		assert.Equal(t, string(domain.KindAlreadyApplied), env.Kind)
		var balance balanceBody
		decode(t, env.Data, &balance)
		assert.True(t, balance.Replayed)
		assert.True(t, balance.RemainingAmount.Equal(decimal.NewFromInt(600)))
	})

	t.Run("applied token lookup", func(t *testing.T) {
		status, _ := call(t, app, http.MethodGet, base+"/payments/tok-1", ownerService, nil)
		assert.Equal(t, fiber.StatusOK, status)

		status, env := call(t, app, http.MethodGet, base+"/payments/tok-2", ownerService, nil)
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, string(domain.KindNotFound), env.Kind)
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		status, env := call(t, app, http.MethodPut, base+"/payment", ownerService, fiber.Map{
			"amount": "0", "idempotency_token": "tok-3",
		})
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, string(domain.KindInvalidAmount), env.Kind)
	})

	t.Run("unknown loan", func(t *testing.T) {
		status, env := call(t, app, http.MethodPut, "/api/loans/999/payment", owner, fiber.Map{
			"amount": "10", "idempotency_token": "tok-4",
		})
		assert.Equal(t, fiber.StatusNotFound, status)
		assert.Equal(t, string(domain.KindNotFound), env.Kind)
	})
}

func TestLoanRoutesPolicyViolation(t *testing.T) {
	gate := newGate()
	app, _ := newLoanApp(t, gate)
	tok := token(t, gate, 3)

	status, env := call(t, app, http.MethodPost, "/api/loans", tok, fiber.Map{
		"amount":   "6000",
		"purpose":  "Kitchen renovation",
		"due_date": dueIn(6),
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, string(domain.KindPolicyViolation), env.Kind)

	status, env = call(t, app, http.MethodPost, "/api/loans", tok, fiber.Map{
		"amount":   "500",
		"purpose":  "Kitchen renovation",
		"due_date": "next week",
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, string(domain.KindValidation), env.Kind)
}

// switchableLedger serves the loan app over real HTTP and can be taken down
type switchableLedger struct {
	server *httptest.Server
	down   atomic.Bool
}

func newSwitchableLedger(t *testing.T, loanApp *fiber.App) *switchableLedger {
	t.Helper()
	l := &switchableLedger{}
	handler := adaptor.FiberApp(loanApp)
	l.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(l.server.Close)
	return l
}

func newPaymentApp(t *testing.T, gate *services.AccessGate, loanURL string) *fiber.App {
	t.Helper()
	cfg := testConfig(config.ServicePayment)
	db := testdb.Open(t, models.MigratePayment)
	log := logger.Discard()

	repo := repositories.NewPaymentRepository(db)
	ledger := downstream.NewLoanClient(loanURL, gate, cfg.LoanCall.Timeout, log)
	payments := services.NewPaymentService(repo, ledger, cfg.LoanCall.Timeout, log)
	reconcile := services.NewReconcileService(repo, payments, cfg.Reconcile.BatchSize, log)

	app := newApp()
	SetupPayment(app, cfg, db, gate, payments, reconcile)
	return app
}

func TestPaymentRoutesSettleAgainstLoanService(t *testing.T) {
	gate := newGate()
	loanApp, _ := newLoanApp(t, gate)
	ledger := newSwitchableLedger(t, loanApp)
	paymentApp := newPaymentApp(t, gate, ledger.server.URL)

	payer := token(t, gate, 21)
	loanID := openLoan(t, loanApp, payer, "1000")

	status, env := call(t, paymentApp, http.MethodPost, "/api/payments", payer, fiber.Map{
		"loan_id":        loanID,
		"amount":         "400",
		"payment_method": "bank_transfer",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	var outcome outcomeBody
	decode(t, env.Data, &outcome)
	assert.Equal(t, "settled", outcome.Status)
	require.NotNil(t, outcome.Loan)
	assert.True(t, outcome.Loan.RemainingAmount.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, "active", outcome.Loan.Status)
	assert.NotEmpty(t, outcome.Payment.TransactionID)

	// the ledger records the transaction id as the idempotency token
	status, _ = call(t, loanApp, http.MethodGet,
		"/api/loans/"+strconv.Itoa(int(loanID))+"/payments/"+outcome.Payment.TransactionID, serviceToken(t, gate, 21), nil)
	assert.Equal(t, fiber.StatusOK, status)

	// paying off the rest marks the loan paid
	status, env = call(t, paymentApp, http.MethodPost, "/api/payments", payer, fiber.Map{
		"loan_id":        loanID,
		"amount":         "600",
		"payment_method": "credit_card",
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	decode(t, env.Data, &outcome)
	assert.Equal(t, "paid", outcome.Loan.Status)
	assert.True(t, outcome.Loan.RemainingAmount.IsZero())

	t.Run("queries", func(t *testing.T) {
		_, env := call(t, paymentApp, http.MethodGet, "/api/payments", payer, nil)
		var list []paymentBody
		decode(t, env.Data, &list)
		assert.Len(t, list, 2)

		_, env = call(t, paymentApp, http.MethodGet, "/api/payments/loan/"+strconv.Itoa(int(loanID)), payer, nil)
		decode(t, env.Data, &list)
		assert.Len(t, list, 2)

		other := token(t, gate, 22)
		_, env = call(t, paymentApp, http.MethodGet, "/api/payments/loan/"+strconv.Itoa(int(loanID)), other, nil)
		decode(t, env.Data, &list)
		assert.Empty(t, list)

		path := "/api/payments/" + strconv.Itoa(int(outcome.Payment.ID))
		status, env := call(t, paymentApp, http.MethodGet, path, payer, nil)
		require.Equal(t, fiber.StatusOK, status)
		var payment paymentBody
		decode(t, env.Data, &payment)
		require.NotNil(t, payment.Settlement)
		assert.Equal(t, "settled", payment.Settlement.Status)

		status, env = call(t, paymentApp, http.MethodGet, path, other, nil)
		assert.Equal(t, fiber.StatusForbidden, status)
		assert.Equal(t, string(domain.KindForbidden), env.Kind)
	})
}

func TestPaymentRoutesDegradedThenReconciled(t *testing.T) {
	gate := newGate()
	loanApp, _ := newLoanApp(t, gate)
	ledger := newSwitchableLedger(t, loanApp)
	paymentApp := newPaymentApp(t, gate, ledger.server.URL)

	payer := token(t, gate, 31)
	loanID := openLoan(t, loanApp, payer, "1000")

	ledger.down.Store(true)

	status, env := call(t, paymentApp, http.MethodPost, "/api/payments", payer, fiber.Map{
		"loan_id":        loanID,
		"amount":         "250",
		"payment_method": "debit_card",
	})
	require.Equal(t, fiber.StatusAccepted, status, env.Error)
	var outcome outcomeBody
	decode(t, env.Data, &outcome)
	assert.Equal(t, "degraded", outcome.Status)
	assert.Equal(t, string(domain.KindTransientNetwork), outcome.Kind)
	require.NotNil(t, outcome.Payment.Settlement)
	assert.Equal(t, "pending", outcome.Payment.Settlement.Status)

	_, env = call(t, paymentApp, http.MethodGet, "/api/payments/unsettled", payer, nil)
	var unsettled []paymentBody
	decode(t, env.Data, &unsettled)
	require.Len(t, unsettled, 1)
	assert.Equal(t, outcome.Payment.ID, unsettled[0].ID)

	// another user does not see the payer's backlog
	_, env = call(t, paymentApp, http.MethodGet, "/api/payments/unsettled", token(t, gate, 32), nil)
	decode(t, env.Data, &unsettled)
	assert.Empty(t, unsettled)

	operator := serviceToken(t, gate, 900)
	_, env = call(t, paymentApp, http.MethodGet, "/api/payments/unsettled", operator, nil)
	decode(t, env.Data, &unsettled)
	assert.Len(t, unsettled, 1)

	ledger.down.Store(false)

	// a full pass is reserved for service callers
	status, env = call(t, paymentApp, http.MethodPost, "/api/payments/reconcile", payer, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, string(domain.KindForbidden), env.Kind)

	status, env = call(t, paymentApp, http.MethodPost, "/api/payments/reconcile", operator, nil)
	require.Equal(t, fiber.StatusOK, status, env.Error)
	var report services.ReconcileReport
	decode(t, env.Data, &report)
	assert.Equal(t, services.ReconcileReport{Examined: 1, Settled: 1}, report)

	// a second pass finds nothing and the balance moved exactly once
	_, env = call(t, paymentApp, http.MethodPost, "/api/payments/reconcile", operator, nil)
	decode(t, env.Data, &report)
	assert.Zero(t, report.Examined)

	_, env = call(t, loanApp, http.MethodGet, "/api/loans/"+strconv.Itoa(int(loanID)), payer, nil)
	var loan loanBody
	decode(t, env.Data, &loan)
	assert.True(t, loan.RemainingAmount.Equal(decimal.NewFromInt(750)))
}

func TestPaymentRoutesRejectedThenRetried(t *testing.T) {
	gate := newGate()
	loanApp, _ := newLoanApp(t, gate)
	ledger := newSwitchableLedger(t, loanApp)
	paymentApp := newPaymentApp(t, gate, ledger.server.URL)

	payer := token(t, gate, 41)

	// a pending loan does not accept payments yet
	status, env := call(t, loanApp, http.MethodPost, "/api/loans", payer, fiber.Map{
		"amount":   "800",
		"purpose":  "Used motorbike",
		"due_date": dueIn(3),
	})
	require.Equal(t, fiber.StatusCreated, status, env.Error)
	var loan loanBody
	decode(t, env.Data, &loan)

	status, env = call(t, paymentApp, http.MethodPost, "/api/payments", payer, fiber.Map{
		"loan_id":        loan.ID,
		"amount":         "100",
		"payment_method": "bank_transfer",
	})
	require.Equal(t, fiber.StatusAccepted, status, env.Error)
	var outcome outcomeBody
	decode(t, env.Data, &outcome)
	assert.Equal(t, string(domain.KindInvalidState), outcome.Kind)
	assert.Equal(t, "rejected", outcome.Payment.Settlement.Status)

	// the scheduled pass leaves rejected payments alone
	_, env = call(t, paymentApp, http.MethodPost, "/api/payments/reconcile", serviceToken(t, gate, 900), nil)
	var report services.ReconcileReport
	decode(t, env.Data, &report)
	assert.Zero(t, report.Examined)

	status, _ = call(t, loanApp, http.MethodPut, "/api/loans/"+strconv.Itoa(int(loan.ID))+"/status", payer,
		fiber.Map{"status": "active"})
	require.Equal(t, fiber.StatusOK, status)

	path := "/api/payments/" + strconv.Itoa(int(outcome.Payment.ID)) + "/reconcile"
	status, env = call(t, paymentApp, http.MethodPost, path, token(t, gate, 42), nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, string(domain.KindForbidden), env.Kind)

	status, env = call(t, paymentApp, http.MethodPost, path, payer, nil)
	require.Equal(t, fiber.StatusOK, status, env.Error)
	decode(t, env.Data, &outcome)
	assert.Equal(t, "settled", outcome.Status)
	assert.Equal(t, "settled", outcome.Payment.Settlement.Status)
}

func TestPaymentRoutesValidation(t *testing.T) {
	gate := newGate()
	paymentApp := newPaymentApp(t, gate, "http://127.0.0.1:1")
	payer := token(t, gate, 51)

	tests := []struct {
		name string
		body fiber.Map
		kind domain.ErrorKind
	}{
		{"missing loan id", fiber.Map{"amount": "10", "payment_method": "bank_transfer"}, domain.KindValidation},
		{"unknown method", fiber.Map{"loan_id": 1, "amount": "10", "payment_method": "cash"}, domain.KindValidation},
		{"negative amount", fiber.Map{"loan_id": 1, "amount": "-5", "payment_method": "bank_transfer"}, domain.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := call(t, paymentApp, http.MethodPost, "/api/payments", payer, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, string(tt.kind), env.Kind)
		})
	}

	_, env := call(t, paymentApp, http.MethodGet, "/api/payments", payer, nil)
	var list []paymentBody
	decode(t, env.Data, &list)
	assert.Empty(t, list)
}

func TestAuthRoutes(t *testing.T) {
	gate := newGate()
	db := testdb.Open(t, models.MigrateAuth)
	authService := services.NewAuthService(repositories.NewUserRepository(db), gate, logger.Discard()).
		WithHashCost(bcrypt.MinCost)

	app := newApp()
	SetupAuth(app, testConfig(config.ServiceAuth), db, gate, authService)

	register := fiber.Map{
		"username":       "somchai",
		"email":          "Somchai@Example.com",
		"password":       "secret123",
		"monthly_income": "2500",
	}

	status, env := call(t, app, http.MethodPost, "/api/auth/register", "", register)
	require.Equal(t, fiber.StatusCreated, status, env.Error)

	status, env = call(t, app, http.MethodPost, "/api/auth/register", "", register)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, string(domain.KindConflict), env.Kind)

	status, env = call(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"username": "somchai", "password": "wrong-password",
	})
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, env = call(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"username": "somchai", "password": "secret123",
	})
	require.Equal(t, fiber.StatusOK, status, env.Error)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	decode(t, env.Data, &login)
	require.NotEmpty(t, login.AccessToken)

	// the issued token carries the income the loan service checks
	identity, err := gate.Authenticate(context.Background(), login.AccessToken)
	require.NoError(t, err)
	assert.True(t, identity.MonthlyIncome.Equal(decimal.NewFromInt(2500)))

	status, env = call(t, app, http.MethodGet, "/api/auth/me", login.AccessToken, nil)
	require.Equal(t, fiber.StatusOK, status)
	var me struct {
		User struct {
			Username string `json:"username"`
			Email    string `json:"email"`
		} `json:"user"`
	}
	decode(t, env.Data, &me)
	assert.Equal(t, "somchai", me.User.Username)
	assert.Equal(t, "somchai@example.com", me.User.Email)

	status, _ = call(t, app, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestGatewayForwardsByPrefix(t *testing.T) {
	var seen atomic.Value
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Method + " " + r.URL.RequestURI())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(backend.Close)

	cfg := testConfig(config.ServiceGateway)
	cfg.LoanCall.Timeout = time.Second
	cfg.Services = config.ServicesConfig{
		AuthURL:    backend.URL,
		LoanURL:    backend.URL,
		PaymentURL: "http://127.0.0.1:1",
	}

	app := newApp()
	SetupGateway(app, cfg, logger.Discard())

	status, env := call(t, app, http.MethodGet, "/api/loans/5?verbose=1", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)
	assert.Equal(t, "GET /api/loans/5?verbose=1", seen.Load())

	status, _ = call(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{"username": "a"})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "POST /api/auth/login", seen.Load())

	status, env = call(t, app, http.MethodGet, "/api/payments", "", nil)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "Gateway Error", env.Error)
}
