package models

import (
	"time"

	"bes-loan/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Loan service tables (ledger store)
// ============================================================

// Loan represents loans table
type Loan struct {
	ID              uint            `gorm:"primaryKey"`
	OwnerID         uint            `gorm:"not null;index"`
	Amount          decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Purpose         string          `gorm:"size:200;not null"`
	LoanDate        time.Time       `gorm:"type:date;not null"`
	DueDate         time.Time       `gorm:"type:date;not null"`
	Status          string          `gorm:"size:20;not null;default:'pending';index"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

func (Loan) TableName() string {
	return "loans"
}

// ToDomain converts the row to a domain loan
func (l *Loan) ToDomain() *domain.Loan {
	return &domain.Loan{
		ID:              l.ID,
		OwnerID:         l.OwnerID,
		Amount:          l.Amount,
		RemainingAmount: l.RemainingAmount,
		Purpose:         l.Purpose,
		LoanDate:        l.LoanDate,
		DueDate:         l.DueDate,
		Status:          domain.LoanStatus(l.Status),
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

// LoanFromDomain converts a domain loan to a row
func LoanFromDomain(l *domain.Loan) *Loan {
	return &Loan{
		ID:              l.ID,
		OwnerID:         l.OwnerID,
		Amount:          l.Amount,
		RemainingAmount: l.RemainingAmount,
		Purpose:         l.Purpose,
		LoanDate:        l.LoanDate,
		DueDate:         l.DueDate,
		Status:          string(l.Status),
		CreatedAt:       l.CreatedAt,
	}
}

// AppliedPayment represents applied_payments table.
// One row per idempotency token the ledger has applied to a loan.
type AppliedPayment struct {
	ID             uint            `gorm:"primaryKey"`
	LoanID         uint            `gorm:"not null;uniqueIndex:idx_applied_loan_token"`
	Token          string          `gorm:"size:64;not null;uniqueIndex:idx_applied_loan_token"`
	Amount         decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	RemainingAfter decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	AppliedAt      time.Time       `gorm:"not null"`
}

func (AppliedPayment) TableName() string {
	return "applied_payments"
}

// ToDomain converts the row to a domain applied payment
func (a *AppliedPayment) ToDomain() *domain.AppliedPayment {
	return &domain.AppliedPayment{
		ID:             a.ID,
		LoanID:         a.LoanID,
		Token:          a.Token,
		Amount:         a.Amount,
		RemainingAfter: a.RemainingAfter,
		AppliedAt:      a.AppliedAt,
	}
}

// MigrateLoan creates the loan service tables
func MigrateLoan(db *gorm.DB) error {
	return db.AutoMigrate(&Loan{}, &AppliedPayment{})
}
