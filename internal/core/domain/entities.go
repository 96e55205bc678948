package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus represents the lifecycle state of a loan
type LoanStatus string

const (
	LoanStatusPending  LoanStatus = "pending"
	LoanStatusApproved LoanStatus = "approved"
	LoanStatusRejected LoanStatus = "rejected"
	LoanStatusActive   LoanStatus = "active"
	LoanStatusPaid     LoanStatus = "paid"
)

// IsValid reports whether s is one of the five known statuses
func (s LoanStatus) IsValid() bool {
	switch s {
	case LoanStatusPending, LoanStatusApproved, LoanStatusRejected, LoanStatusActive, LoanStatusPaid:
		return true
	}
	return false
}

// IsOpen reports whether a loan in this status counts toward the open-loan limit
func (s LoanStatus) IsOpen() bool {
	return s == LoanStatusPending || s == LoanStatusApproved || s == LoanStatusActive
}

// AcceptsPayment reports whether payments may be applied in this status
func (s LoanStatus) AcceptsPayment() bool {
	return s == LoanStatusActive || s == LoanStatusApproved
}

// MoneyPlaces is the number of decimal places every stored amount keeps
const MoneyPlaces = 2

// IsWholeCents reports whether amount is stored without rounding
func IsWholeCents(amount decimal.Decimal) bool {
	return amount.Equal(amount.Round(MoneyPlaces))
}

// OpenLoanStatuses lists the statuses counted by the open-loan limit
var OpenLoanStatuses = []LoanStatus{LoanStatusPending, LoanStatusApproved, LoanStatusActive}

// PaymentMethod represents how a payment was made
type PaymentMethod string

const (
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodDebitCard    PaymentMethod = "debit_card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// IsValid reports whether m is a supported payment method
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// SettlementStatus tracks whether a payment reached the loan ledger
type SettlementStatus string

const (
	SettlementPending  SettlementStatus = "pending"
	SettlementSettled  SettlementStatus = "settled"
	SettlementRejected SettlementStatus = "rejected"
)

// Caller roles carried by Access Gate credentials
const (
	RoleUser    = "USER"
	RoleService = "SERVICE" // a service acting on behalf of UserID
)

// CallerIdentity is the snapshot the Access Gate resolves from a credential
type CallerIdentity struct {
	UserID        uint
	Username      string
	MonthlyIncome decimal.Decimal
	Role          string
}

// IsService reports whether the caller is another service rather than a borrower
func (c CallerIdentity) IsService() bool {
	return c.Role == RoleService
}

// User represents an account in the auth service
type User struct {
	ID            uint
	Username      string
	Email         string
	Password      string // Hashed
	MonthlyIncome decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Identity returns the caller identity snapshot for u
func (u *User) Identity() CallerIdentity {
	return CallerIdentity{
		UserID:        u.ID,
		Username:      u.Username,
		MonthlyIncome: u.MonthlyIncome,
		Role:          RoleUser,
	}
}

// Loan represents a loan owned by the loan service
type Loan struct {
	ID              uint
	OwnerID         uint
	Amount          decimal.Decimal
	RemainingAmount decimal.Decimal
	Purpose         string
	LoanDate        time.Time
	DueDate         time.Time
	Status          LoanStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOwnedBy reports whether userID owns the loan
func (l *Loan) IsOwnedBy(userID uint) bool {
	return l.OwnerID == userID
}

// Apply subtracts amount from the remaining balance, flooring at zero,
// and derives the status from the result. It is the only place a loan becomes paid.
func (l *Loan) Apply(amount decimal.Decimal) {
	remaining := l.RemainingAmount.Sub(amount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	l.RemainingAmount = remaining
	if remaining.IsZero() {
		l.Status = LoanStatusPaid
	} else {
		l.Status = LoanStatusActive
	}
}

// Balance returns the wire view of the loan's balance
func (l *Loan) Balance() *LoanBalance {
	return &LoanBalance{
		LoanID:          l.ID,
		RemainingAmount: l.RemainingAmount,
		Status:          l.Status,
	}
}

// AppliedPayment records an idempotency token the ledger has already applied
type AppliedPayment struct {
	ID             uint
	LoanID         uint
	Token          string
	Amount         decimal.Decimal
	RemainingAfter decimal.Decimal
	AppliedAt      time.Time
}

// LoanBalance is what the loan service reports back after applying a payment
type LoanBalance struct {
	LoanID          uint
	RemainingAmount decimal.Decimal
	Status          LoanStatus
	Replayed        bool
}

// Payment is an append-only record of a repayment attempt
type Payment struct {
	ID            uint
	LoanID        uint
	PayerID       uint
	Amount        decimal.Decimal
	Method        PaymentMethod
	TransactionID string
	PaymentDate   time.Time
}

// Settlement tracks the propagation of a payment to the loan ledger
type Settlement struct {
	ID             uint
	PaymentID      uint
	Status         SettlementStatus
	Attempts       int
	LastErrorKind  ErrorKind
	LastError      string
	RemainingAfter *decimal.Decimal
	SettledAt      *time.Time
	UpdatedAt      time.Time
}

// UnsettledPayment pairs a payment with its settlement record
type UnsettledPayment struct {
	Payment    *Payment
	Settlement *Settlement
}
