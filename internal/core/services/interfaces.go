package services

import (
	"context"

	"bes-loan/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Authenticator resolves an opaque credential to a caller identity.
// It is the only way either engine learns who is calling.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (*domain.CallerIdentity, error)
}

// CredentialIssuer mints credentials the Authenticator accepts
type CredentialIssuer interface {
	Issue(identity domain.CallerIdentity) (string, error)
	IssueOnBehalfOf(identity domain.CallerIdentity) (string, error)
}

// LedgerApplyRequest is the payment service's request to the loan ledger
type LedgerApplyRequest struct {
	LoanID           uint
	Caller           domain.CallerIdentity
	Amount           decimal.Decimal
	IdempotencyToken string
}

// LoanLedger is the loan service as seen from the payment service.
// Implementations report failures as *domain.Error: remote rejections keep their
// kind, anything that did not complete is KindTransientNetwork.
type LoanLedger interface {
	ApplyPayment(ctx context.Context, req LedgerApplyRequest) (*domain.LoanBalance, error)
	IsPaymentApplied(ctx context.Context, caller domain.CallerIdentity, loanID uint, token string) (bool, error)
}
