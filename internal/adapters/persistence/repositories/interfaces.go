package repositories

import (
	"context"

	"bes-loan/internal/core/domain"
)

// UserRepository defines user repository interface (auth service)
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uint) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// LoanRepository defines the ledger store (loan service)
type LoanRepository interface {
	Create(ctx context.Context, loan *domain.Loan) error
	GetByID(ctx context.Context, id uint) (*domain.Loan, error)
	ListByOwner(ctx context.Context, ownerID uint) ([]*domain.Loan, error)
	CountByOwnerAndStatus(ctx context.Context, ownerID uint, statuses []domain.LoanStatus) (int64, error)
	GetAppliedPayment(ctx context.Context, loanID uint, token string) (*domain.AppliedPayment, error)

	// WithLoanLocked loads the loan with a row lock inside one transaction and
	// hands it to fn. Writes made through tx commit together when fn returns nil.
	WithLoanLocked(ctx context.Context, id uint, fn func(tx LoanTx, loan *domain.Loan) error) error
}

// LoanTx is the ledger view available while a loan is locked
type LoanTx interface {
	GetAppliedPayment(ctx context.Context, loanID uint, token string) (*domain.AppliedPayment, error)
	SaveBalance(ctx context.Context, loan *domain.Loan) error
	SaveStatus(ctx context.Context, loan *domain.Loan) error
	CreateAppliedPayment(ctx context.Context, applied *domain.AppliedPayment) error
}

// PaymentRepository defines the payment store (payment service)
type PaymentRepository interface {
	// Create writes the payment and its pending settlement in one transaction
	Create(ctx context.Context, payment *domain.Payment) (*domain.Settlement, error)
	GetByID(ctx context.Context, id uint) (*domain.Payment, error)
	ListByLoan(ctx context.Context, loanID uint) ([]*domain.Payment, error)
	ListByPayer(ctx context.Context, payerID uint) ([]*domain.Payment, error)
	GetSettlement(ctx context.Context, paymentID uint) (*domain.Settlement, error)
	UpdateSettlement(ctx context.Context, settlement *domain.Settlement) error
	ListUnsettled(ctx context.Context, statuses []domain.SettlementStatus, limit int) ([]*domain.UnsettledPayment, error)
	ListUnsettledByPayer(ctx context.Context, payerID uint, statuses []domain.SettlementStatus, limit int) ([]*domain.UnsettledPayment, error)
}
