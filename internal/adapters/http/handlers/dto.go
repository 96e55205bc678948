package handlers

import (
	"time"

	"bes-loan/internal/core/domain"
	"bes-loan/internal/core/services"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// LoanResponse is the public view of a loan
type LoanResponse struct {
	ID              uint            `json:"id"`
	UserID          uint            `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Purpose         string          `json:"purpose"`
	LoanDate        string          `json:"loan_date"`
	DueDate         string          `json:"due_date"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toLoanResponse(l *domain.Loan) *LoanResponse {
	return &LoanResponse{
		ID:              l.ID,
		UserID:          l.OwnerID,
		Amount:          l.Amount,
		RemainingAmount: l.RemainingAmount,
		Purpose:         l.Purpose,
		LoanDate:        l.LoanDate.Format(dateLayout),
		DueDate:         l.DueDate.Format(dateLayout),
		Status:          string(l.Status),
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

func toLoanResponses(loans []*domain.Loan) []*LoanResponse {
	out := make([]*LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l))
	}
	return out
}

// BalanceResponse is the ledger's answer to a payment
type BalanceResponse struct {
	ID              uint            `json:"id"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          string          `json:"status"`
	Replayed        bool            `json:"replayed,omitempty"`
}

func toBalanceResponse(b *domain.LoanBalance) *BalanceResponse {
	return &BalanceResponse{
		ID:              b.LoanID,
		RemainingAmount: b.RemainingAmount,
		Status:          string(b.Status),
		Replayed:        b.Replayed,
	}
}

// AppliedPaymentResponse answers the applied-token lookup
type AppliedPaymentResponse struct {
	LoanID         uint            `json:"loan_id"`
	Token          string          `json:"idempotency_token"`
	Amount         decimal.Decimal `json:"amount"`
	RemainingAfter decimal.Decimal `json:"remaining_after"`
	AppliedAt      time.Time       `json:"applied_at"`
}

// PaymentResponse is the public view of a payment
type PaymentResponse struct {
	ID            uint                `json:"id"`
	LoanID        uint                `json:"loan_id"`
	UserID        uint                `json:"user_id"`
	Amount        decimal.Decimal     `json:"amount"`
	PaymentMethod string              `json:"payment_method"`
	TransactionID string              `json:"transaction_id"`
	PaymentDate   time.Time           `json:"payment_date"`
	Settlement    *SettlementResponse `json:"settlement,omitempty"`
}

func toPaymentResponse(p *domain.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:            p.ID,
		LoanID:        p.LoanID,
		UserID:        p.PayerID,
		Amount:        p.Amount,
		PaymentMethod: string(p.Method),
		TransactionID: p.TransactionID,
		PaymentDate:   p.PaymentDate,
	}
}

func toPaymentResponses(payments []*domain.Payment) []*PaymentResponse {
	out := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	return out
}

// SettlementResponse reports whether a payment reached the loan ledger
type SettlementResponse struct {
	Status         string           `json:"status"`
	Attempts       int              `json:"attempts"`
	LastErrorKind  string           `json:"last_error_kind,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
	RemainingAfter *decimal.Decimal `json:"remaining_after,omitempty"`
	SettledAt      *time.Time       `json:"settled_at,omitempty"`
}

func toSettlementResponse(s *domain.Settlement) *SettlementResponse {
	if s == nil {
		return nil
	}
	return &SettlementResponse{
		Status:         string(s.Status),
		Attempts:       s.Attempts,
		LastErrorKind:  string(s.LastErrorKind),
		LastError:      s.LastError,
		RemainingAfter: s.RemainingAfter,
		SettledAt:      s.SettledAt,
	}
}

func toPaymentRecordResponse(payment *domain.Payment, settlement *domain.Settlement) *PaymentResponse {
	resp := toPaymentResponse(payment)
	resp.Settlement = toSettlementResponse(settlement)
	return resp
}

// OutcomeResponse is the result of recording or reconciling a payment
type OutcomeResponse struct {
	Status  string           `json:"status"`
	Payment *PaymentResponse `json:"payment"`
	Loan    *BalanceResponse `json:"loan,omitempty"`
	Kind    string           `json:"kind,omitempty"`
	Detail  string           `json:"detail,omitempty"`
}

func toOutcomeResponse(o *services.PaymentOutcome) *OutcomeResponse {
	resp := &OutcomeResponse{
		Status:  string(o.Status),
		Payment: toPaymentRecordResponse(o.Payment, o.Settlement),
		Kind:    string(o.FailureKind),
		Detail:  o.FailureMessage,
	}
	if o.Balance != nil {
		resp.Loan = toBalanceResponse(o.Balance)
	}
	return resp
}

// UserResponse is the public view of an account
type UserResponse struct {
	ID            uint            `json:"id"`
	Username      string          `json:"username"`
	Email         string          `json:"email"`
	MonthlyIncome decimal.Decimal `json:"monthly_income"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toUserResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		MonthlyIncome: u.MonthlyIncome,
		CreatedAt:     u.CreatedAt,
	}
}
