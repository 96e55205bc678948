package services

import (
	"context"

	"bes-loan/internal/core/domain"

	"github.com/stretchr/testify/mock"
)

// mockLedger is a testify mock of LoanLedger
type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) ApplyPayment(ctx context.Context, req LedgerApplyRequest) (*domain.LoanBalance, error) {
	args := m.Called(ctx, req)
	balance, _ := args.Get(0).(*domain.LoanBalance)
	return balance, args.Error(1)
}

func (m *mockLedger) IsPaymentApplied(ctx context.Context, caller domain.CallerIdentity, loanID uint, token string) (bool, error) {
	args := m.Called(ctx, caller, loanID, token)
	return args.Bool(0), args.Error(1)
}

// localLedger calls a LoanService in-process, the way the HTTP client reaches it remotely
type localLedger struct {
	loans *LoanService
}

func (l *localLedger) ApplyPayment(ctx context.Context, req LedgerApplyRequest) (*domain.LoanBalance, error) {
	res, err := l.loans.ApplyPayment(ctx, req.Caller, &ApplyPaymentInput{
		LoanID:           req.LoanID,
		Amount:           req.Amount,
		IdempotencyToken: req.IdempotencyToken,
	})
	if err != nil {
		return nil, err
	}
	balance := res.Loan.Balance()
	balance.Replayed = res.Replayed
	return balance, nil
}

func (l *localLedger) IsPaymentApplied(ctx context.Context, caller domain.CallerIdentity, loanID uint, token string) (bool, error) {
	_, err := l.loans.GetAppliedPayment(ctx, caller, loanID, token)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
