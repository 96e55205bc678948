package models

import (
	"time"

	"bes-loan/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Payment service tables (payment store)
// ============================================================

// Payment represents payments table (append-only)
type Payment struct {
	ID            uint            `gorm:"primaryKey"`
	LoanID        uint            `gorm:"not null;index"`
	PayerID       uint            `gorm:"not null;index"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	PaymentMethod string          `gorm:"size:20;not null"`
	TransactionID string          `gorm:"size:64;not null;uniqueIndex"`
	PaymentDate   time.Time       `gorm:"not null"`
}

func (Payment) TableName() string {
	return "payments"
}

// ToDomain converts the row to a domain payment
func (p *Payment) ToDomain() *domain.Payment {
	return &domain.Payment{
		ID:            p.ID,
		LoanID:        p.LoanID,
		PayerID:       p.PayerID,
		Amount:        p.Amount,
		Method:        domain.PaymentMethod(p.PaymentMethod),
		TransactionID: p.TransactionID,
		PaymentDate:   p.PaymentDate,
	}
}

// PaymentFromDomain converts a domain payment to a row
func PaymentFromDomain(p *domain.Payment) *Payment {
	return &Payment{
		ID:            p.ID,
		LoanID:        p.LoanID,
		PayerID:       p.PayerID,
		Amount:        p.Amount,
		PaymentMethod: string(p.Method),
		TransactionID: p.TransactionID,
		PaymentDate:   p.PaymentDate,
	}
}

// PaymentSettlement represents payment_settlements table.
// Kept apart from payments so payment rows are never updated.
type PaymentSettlement struct {
	ID             uint                `gorm:"primaryKey"`
	PaymentID      uint                `gorm:"not null;uniqueIndex"`
	Status         string              `gorm:"size:20;not null;index"`
	Attempts       int                 `gorm:"not null;default:0"`
	LastErrorKind  string              `gorm:"size:40"`
	LastError      string              `gorm:"size:500"`
	RemainingAfter decimal.NullDecimal `gorm:"type:decimal(15,2)"`
	SettledAt      *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (PaymentSettlement) TableName() string {
	return "payment_settlements"
}

// ToDomain converts the row to a domain settlement
func (s *PaymentSettlement) ToDomain() *domain.Settlement {
	var remaining *decimal.Decimal
	if s.RemainingAfter.Valid {
		d := s.RemainingAfter.Decimal
		remaining = &d
	}

	return &domain.Settlement{
		ID:             s.ID,
		PaymentID:      s.PaymentID,
		Status:         domain.SettlementStatus(s.Status),
		Attempts:       s.Attempts,
		LastErrorKind:  domain.ErrorKind(s.LastErrorKind),
		LastError:      s.LastError,
		RemainingAfter: remaining,
		SettledAt:      s.SettledAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// SettlementFromDomain converts a domain settlement to a row
func SettlementFromDomain(s *domain.Settlement) *PaymentSettlement {
	row := &PaymentSettlement{
		ID:            s.ID,
		PaymentID:     s.PaymentID,
		Status:        string(s.Status),
		Attempts:      s.Attempts,
		LastErrorKind: string(s.LastErrorKind),
		LastError:     truncate(s.LastError, 500),
		SettledAt:     s.SettledAt,
	}
	if s.RemainingAfter != nil {
		row.RemainingAfter = decimal.NewNullDecimal(*s.RemainingAfter)
	}
	return row
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// MigratePayment creates the payment service tables
func MigratePayment(db *gorm.DB) error {
	return db.AutoMigrate(&Payment{}, &PaymentSettlement{})
}
