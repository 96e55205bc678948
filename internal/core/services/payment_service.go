package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"bes-loan/internal/adapters/persistence/repositories"
	"bes-loan/internal/core/domain"
	"bes-loan/internal/pkg/keylock"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// OutcomeStatus reports how far a recorded payment got
type OutcomeStatus string

const (
	// OutcomeSettled means the loan ledger confirmed the payment
	OutcomeSettled OutcomeStatus = "settled"
	// OutcomeDegraded means the payment is recorded but the balance update is unconfirmed
	OutcomeDegraded OutcomeStatus = "degraded"
)

// PaymentOutcome is the result of recording or reconciling a payment.
// Payment is always set once the payment row exists.
type PaymentOutcome struct {
	Payment        *domain.Payment
	Settlement     *domain.Settlement
	Status         OutcomeStatus
	FailureKind    domain.ErrorKind
	FailureMessage string
	Balance        *domain.LoanBalance
}

// PaymentRecord is a payment with its settlement state
type PaymentRecord struct {
	Payment    *domain.Payment
	Settlement *domain.Settlement
}

// RecordPaymentInput represents a repayment request
type RecordPaymentInput struct {
	LoanID        uint            `json:"loan_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod string          `json:"payment_method" validate:"required"`
}

// PaymentService records payments and propagates them to the loan ledger
type PaymentService struct {
	repo        repositories.PaymentRepository
	ledger      LoanLedger
	callTimeout time.Duration
	locks       *keylock.KeyedMutex[uint]
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewPaymentService creates a new payment service.
// callTimeout bounds each ApplyPayment call into the loan service.
func NewPaymentService(repo repositories.PaymentRepository, ledger LoanLedger, callTimeout time.Duration, log logrus.FieldLogger) *PaymentService {
	return &PaymentService{
		repo:        repo,
		ledger:      ledger,
		callTimeout: callTimeout,
		locks:       keylock.New[uint](),
		log:         log,
		now:         time.Now,
	}
}

// WithClock replaces the service's time source
func (s *PaymentService) WithClock(now func() time.Time) *PaymentService {
	s.now = now
	return s
}

// RecordPayment persists the payment first, then applies it to the loan.
// Only validation and the local write can fail the call; a failed balance
// update is reported as a degraded outcome.
func (s *PaymentService) RecordPayment(ctx context.Context, caller domain.CallerIdentity, input *RecordPaymentInput) (*PaymentOutcome, error) {
	if input.LoanID == 0 {
		return nil, domain.ErrInvalidLoanID
	}
	if !input.Amount.IsPositive() {
		return nil, domain.NewValidationError("payment amount must be greater than 0")
	}
	if !domain.IsWholeCents(input.Amount) {
		return nil, domain.ErrAmountPrecision
	}
	method := domain.PaymentMethod(strings.TrimSpace(input.PaymentMethod))
	if !method.IsValid() {
		return nil, domain.ErrInvalidPaymentMethod
	}

	payment := &domain.Payment{
		LoanID:        input.LoanID,
		PayerID:       caller.UserID,
		Amount:        input.Amount,
		Method:        method,
		TransactionID: uuid.NewString(),
		PaymentDate:   s.now(),
	}
	settlement, err := s.repo.Create(ctx, payment)
	if err != nil {
		s.log.WithError(err).WithField("loan_id", input.LoanID).Error("failed to record payment")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"loan_id":        payment.LoanID,
		"transaction_id": payment.TransactionID,
		"amount":         payment.Amount.String(),
	}).Info("payment recorded")

	unlock := s.locks.Lock(payment.LoanID)
	defer unlock()

	return s.settleLocked(ctx, caller, payment, settlement), nil
}

// settleLocked sends the payment to the ledger and stores the result.
// The caller holds the loan's lock.
func (s *PaymentService) settleLocked(ctx context.Context, caller domain.CallerIdentity, payment *domain.Payment, settlement *domain.Settlement) *PaymentOutcome {
	callCtx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()

	balance, err := s.ledger.ApplyPayment(callCtx, LedgerApplyRequest{
		LoanID:           payment.LoanID,
		Caller:           caller,
		Amount:           payment.Amount,
		IdempotencyToken: payment.TransactionID,
	})

	settlement.Attempts++
	outcome := &PaymentOutcome{Payment: payment, Settlement: settlement}

	kind := ledgerErrorKind(err)
	switch {
	case err == nil, kind == domain.KindAlreadyApplied:
		s.markSettled(settlement, balance)
		outcome.Status = OutcomeSettled
		outcome.Balance = balance
	default:
		settlement.LastErrorKind = kind
		settlement.LastError = domain.MessageOf(err)
		if domain.IsRetryable(kind) {
			settlement.Status = domain.SettlementPending
		} else {
			settlement.Status = domain.SettlementRejected
		}
		outcome.Status = OutcomeDegraded
		outcome.FailureKind = kind
		outcome.FailureMessage = settlement.LastError
	}

	s.saveSettlement(ctx, payment, settlement)
	return outcome
}

func (s *PaymentService) markSettled(settlement *domain.Settlement, balance *domain.LoanBalance) {
	now := s.now()
	settlement.Status = domain.SettlementSettled
	settlement.LastErrorKind = ""
	settlement.LastError = ""
	settlement.SettledAt = &now
	if balance != nil {
		remaining := balance.RemainingAmount
		settlement.RemainingAfter = &remaining
	}
}

// saveSettlement stores settlement bookkeeping. A failure here is logged only:
// the payment row is durable and reconciliation will find it again.
func (s *PaymentService) saveSettlement(ctx context.Context, payment *domain.Payment, settlement *domain.Settlement) {
	entry := s.log.WithFields(logrus.Fields{
		"payment_id":     payment.ID,
		"loan_id":        payment.LoanID,
		"transaction_id": payment.TransactionID,
		"settlement":     settlement.Status,
		"attempts":       settlement.Attempts,
	})

	if err := s.repo.UpdateSettlement(context.WithoutCancel(ctx), settlement); err != nil {
		entry.WithError(err).Error("failed to store settlement state")
		return
	}

	if settlement.Status == domain.SettlementSettled {
		entry.Info("payment settled")
	} else {
		entry.WithField("kind", settlement.LastErrorKind).Warn("payment not applied to loan")
	}
}

// ledgerErrorKind classifies a LoanLedger failure. Context expiry is always transient.
func ledgerErrorKind(err error) domain.ErrorKind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.KindTransientNetwork
	}
	return domain.KindOf(err)
}

// ListPaymentsForLoan lists payments made against a loan, oldest first
func (s *PaymentService) ListPaymentsForLoan(ctx context.Context, loanID uint) ([]*domain.Payment, error) {
	if loanID == 0 {
		return nil, domain.ErrInvalidLoanID
	}
	return s.repo.ListByLoan(ctx, loanID)
}

// ListPaymentsForOwner lists payments made by a user, oldest first
func (s *PaymentService) ListPaymentsForOwner(ctx context.Context, payerID uint) ([]*domain.Payment, error) {
	return s.repo.ListByPayer(ctx, payerID)
}

// GetPayment gets a payment and its settlement state
func (s *PaymentService) GetPayment(ctx context.Context, id uint) (*PaymentRecord, error) {
	payment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	settlement, err := s.repo.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}
	return &PaymentRecord{Payment: payment, Settlement: settlement}, nil
}

// GetPaymentForCaller gets a payment the caller made
func (s *PaymentService) GetPaymentForCaller(ctx context.Context, caller domain.CallerIdentity, id uint) (*PaymentRecord, error) {
	record, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Payment.PayerID != caller.UserID {
		return nil, domain.ErrForbidden
	}
	return record, nil
}
