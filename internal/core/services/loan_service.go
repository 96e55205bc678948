package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"bes-loan/internal/adapters/persistence/repositories"
	"bes-loan/internal/core/domain"
	"bes-loan/internal/pkg/keylock"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LoanPolicy holds the issuance limits
type LoanPolicy struct {
	MinAmount        decimal.Decimal
	MaxAmount        decimal.Decimal
	MaxTermYears     int
	MinPurposeLength int
	MaxPurposeLength int
	MaxOpenLoans     int64
	MinMonthlyIncome decimal.Decimal
}

// DefaultLoanPolicy returns the production issuance limits
func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{
		MinAmount:        decimal.NewFromInt(100),
		MaxAmount:        decimal.NewFromInt(5000),
		MaxTermYears:     2,
		MinPurposeLength: 5,
		MaxPurposeLength: 200,
		MaxOpenLoans:     3,
		MinMonthlyIncome: decimal.NewFromInt(1200),
	}
}

// LoanService is the authority over loan balances and status
type LoanService struct {
	repo   repositories.LoanRepository
	policy LoanPolicy
	locks  *keylock.KeyedMutex[uint] // per loan
	owners *keylock.KeyedMutex[uint] // per owner, guards the open-loan count
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewLoanService creates a new loan service
func NewLoanService(repo repositories.LoanRepository, policy LoanPolicy, log logrus.FieldLogger) *LoanService {
	return &LoanService{
		repo:   repo,
		policy: policy,
		locks:  keylock.New[uint](),
		owners: keylock.New[uint](),
		log:    log,
		now:    time.Now,
	}
}

// WithClock replaces the service's time source
func (s *LoanService) WithClock(now func() time.Time) *LoanService {
	s.now = now
	return s
}

// IssueLoanInput represents a loan application
type IssueLoanInput struct {
	Amount  decimal.Decimal `json:"amount" validate:"required"`
	Purpose string          `json:"purpose" validate:"required"`
	DueDate string          `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// ApplyPaymentInput represents a balance update request from the payment service
type ApplyPaymentInput struct {
	LoanID           uint            `json:"-"`
	Amount           decimal.Decimal `json:"amount"`
	IdempotencyToken string          `json:"idempotency_token"`
}

// ApplyPaymentResult is the loan after a payment, and whether the token had already been applied
type ApplyPaymentResult struct {
	Loan     *domain.Loan
	Replayed bool
}

// IssueLoan checks the issuance policy and creates a pending loan
func (s *LoanService) IssueLoan(ctx context.Context, caller domain.CallerIdentity, input *IssueLoanInput) (*domain.Loan, error) {
	today := s.today()

	dueDate, err := time.Parse("2006-01-02", strings.TrimSpace(input.DueDate))
	if err != nil {
		return nil, domain.NewValidationError("due_date must be a date in YYYY-MM-DD format")
	}
	purpose := strings.TrimSpace(input.Purpose)
	if !domain.IsWholeCents(input.Amount) {
		return nil, domain.ErrAmountPrecision
	}

	// the open-loan count and the insert must not interleave with another application
	unlock := s.owners.Lock(caller.UserID)
	defer unlock()

	if err := s.checkPolicy(ctx, caller, input.Amount, purpose, today, dueDate); err != nil {
		s.log.WithFields(logrus.Fields{
			"user_id": caller.UserID,
			"kind":    domain.KindOf(err),
		}).Info("loan application refused")
		return nil, err
	}

	loan := &domain.Loan{
		OwnerID:         caller.UserID,
		Amount:          input.Amount,
		RemainingAmount: input.Amount,
		Purpose:         purpose,
		LoanDate:        today,
		DueDate:         dueDate,
		Status:          domain.LoanStatusPending,
	}
	if err := s.repo.Create(ctx, loan); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id": loan.ID,
		"user_id": caller.UserID,
		"amount":  loan.Amount.String(),
	}).Info("loan issued")
	return loan, nil
}

// checkPolicy evaluates the issuance rules in order and returns the first failure
func (s *LoanService) checkPolicy(ctx context.Context, caller domain.CallerIdentity, amount decimal.Decimal, purpose string, today, dueDate time.Time) error {
	p := s.policy

	if amount.LessThan(p.MinAmount) || amount.GreaterThan(p.MaxAmount) {
		return domain.NewPolicyViolation(domain.RuleAmountRange,
			"loan amount must be between %s and %s", p.MinAmount, p.MaxAmount)
	}

	if !dueDate.After(today) {
		return domain.NewPolicyViolation(domain.RuleDueDateFuture, "due date must be in the future")
	}
	if dueDate.After(today.AddDate(p.MaxTermYears, 0, 0)) {
		return domain.NewPolicyViolation(domain.RuleDueDateHorizon,
			"due date cannot be more than %d years from now", p.MaxTermYears)
	}

	if n := utf8.RuneCountInString(purpose); n < p.MinPurposeLength || n > p.MaxPurposeLength {
		return domain.NewPolicyViolation(domain.RulePurposeLength,
			"purpose must be between %d and %d characters", p.MinPurposeLength, p.MaxPurposeLength)
	}

	open, err := s.repo.CountByOwnerAndStatus(ctx, caller.UserID, domain.OpenLoanStatuses)
	if err != nil {
		return err
	}
	if open >= p.MaxOpenLoans {
		return domain.NewPolicyViolation(domain.RuleOpenLoanLimit,
			"maximum %d active loans allowed", p.MaxOpenLoans)
	}

	if caller.MonthlyIncome.LessThan(p.MinMonthlyIncome) {
		return domain.NewPolicyViolation(domain.RuleMinimumIncome,
			"minimum monthly income of %s required", p.MinMonthlyIncome)
	}

	return nil
}

// GetLoan gets a loan by ID
func (s *LoanService) GetLoan(ctx context.Context, id uint) (*domain.Loan, error) {
	return s.repo.GetByID(ctx, id)
}

// GetLoanForCaller gets a loan the caller owns
func (s *LoanService) GetLoanForCaller(ctx context.Context, caller domain.CallerIdentity, id uint) (*domain.Loan, error) {
	loan, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !loan.IsOwnedBy(caller.UserID) {
		return nil, domain.ErrNotLoanOwner
	}
	return loan, nil
}

// ListLoansForOwner lists an owner's loans in insertion order
func (s *LoanService) ListLoansForOwner(ctx context.Context, ownerID uint) ([]*domain.Loan, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// SetStatus is the administrative status transition. It never touches the balance,
// so it may not move a loan into or out of paid.
func (s *LoanService) SetStatus(ctx context.Context, caller domain.CallerIdentity, id uint, newStatus string) (*domain.Loan, error) {
	status := domain.LoanStatus(strings.ToLower(strings.TrimSpace(newStatus)))
	if !status.IsValid() {
		return nil, domain.ErrInvalidLoanStatus
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	var updated *domain.Loan
	err := s.repo.WithLoanLocked(ctx, id, func(tx repositories.LoanTx, loan *domain.Loan) error {
		if !loan.IsOwnedBy(caller.UserID) {
			return domain.ErrNotLoanOwner
		}
		if status == domain.LoanStatusPaid {
			return domain.ErrPaidViaPaymentOnly
		}
		if loan.Status == domain.LoanStatusPaid {
			return domain.ErrLoanAlreadyPaid
		}

		loan.Status = status
		if err := tx.SaveStatus(ctx, loan); err != nil {
			return err
		}
		updated = loan
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id": id,
		"status":  status,
	}).Info("loan status updated")
	return updated, nil
}

// ApplyPayment decrements the loan balance once per idempotency token.
// A token already applied to the loan returns the current loan with Replayed set.
func (s *LoanService) ApplyPayment(ctx context.Context, caller domain.CallerIdentity, input *ApplyPaymentInput) (*ApplyPaymentResult, error) {
	if !input.Amount.IsPositive() {
		return nil, domain.ErrInvalidPaymentAmount
	}
	if !domain.IsWholeCents(input.Amount) {
		return nil, domain.ErrAmountPrecision
	}
	token := strings.TrimSpace(input.IdempotencyToken)
	if token == "" {
		return nil, domain.ErrMissingIdempotencyKey
	}

	unlock := s.locks.Lock(input.LoanID)
	defer unlock()

	var result *ApplyPaymentResult
	err := s.repo.WithLoanLocked(ctx, input.LoanID, func(tx repositories.LoanTx, loan *domain.Loan) error {
		if !loan.IsOwnedBy(caller.UserID) {
			return domain.ErrNotLoanOwner
		}

		applied, err := tx.GetAppliedPayment(ctx, loan.ID, token)
		switch {
		case err == nil:
			if !applied.Amount.Equal(input.Amount) {
				return domain.ErrIdempotencyMismatch
			}
			result = &ApplyPaymentResult{Loan: loan, Replayed: true}
			return nil
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		if !loan.Status.AcceptsPayment() {
			return domain.ErrLoanNotPayable
		}

		loan.Apply(input.Amount)
		if err := tx.SaveBalance(ctx, loan); err != nil {
			return err
		}
		if err := tx.CreateAppliedPayment(ctx, &domain.AppliedPayment{
			LoanID:         loan.ID,
			Token:          token,
			Amount:         input.Amount,
			RemainingAfter: loan.RemainingAmount,
			AppliedAt:      s.now(),
		}); err != nil {
			return err
		}

		result = &ApplyPaymentResult{Loan: loan}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id":   input.LoanID,
		"token":     token,
		"remaining": result.Loan.RemainingAmount.String(),
		"status":    result.Loan.Status,
		"replayed":  result.Replayed,
	}).Info("payment applied")
	return result, nil
}

// GetAppliedPayment reports whether token was applied to a loan the caller owns
func (s *LoanService) GetAppliedPayment(ctx context.Context, caller domain.CallerIdentity, loanID uint, token string) (*domain.AppliedPayment, error) {
	if _, err := s.GetLoanForCaller(ctx, caller, loanID); err != nil {
		return nil, err
	}
	return s.repo.GetAppliedPayment(ctx, loanID, strings.TrimSpace(token))
}

func (s *LoanService) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
