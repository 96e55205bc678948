package services

import (
	"context"
	"sync"

	"bes-loan/internal/adapters/persistence/repositories"
	"bes-loan/internal/core/domain"

	"github.com/sirupsen/logrus"
)

// reconcileWorkers bounds how many loans one pass works on at once
const reconcileWorkers = 4

// ReconcileReport summarizes one reconciliation pass
type ReconcileReport struct {
	Examined     int `json:"examined"`
	Settled      int `json:"settled"`
	Rejected     int `json:"rejected"`
	StillPending int `json:"still_pending"`
}

// ReconcileService finds payments the loan ledger never confirmed and retries them
// with their original transaction ID.
type ReconcileService struct {
	repo      repositories.PaymentRepository
	payments  *PaymentService
	batchSize int
	pass      sync.Mutex
	log       logrus.FieldLogger
}

// NewReconcileService creates a new reconcile service
func NewReconcileService(repo repositories.PaymentRepository, payments *PaymentService, batchSize int, log logrus.FieldLogger) *ReconcileService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReconcileService{
		repo:      repo,
		payments:  payments,
		batchSize: batchSize,
		log:       log,
	}
}

// FindUnsettledPayments lists pending and rejected payments, oldest first
func (s *ReconcileService) FindUnsettledPayments(ctx context.Context) ([]*domain.UnsettledPayment, error) {
	return s.repo.ListUnsettled(ctx,
		[]domain.SettlementStatus{domain.SettlementPending, domain.SettlementRejected},
		s.batchSize)
}

// FindUnsettledPaymentsForCaller lists the unsettled payments the caller may see:
// all of them for a service caller, the caller's own otherwise
func (s *ReconcileService) FindUnsettledPaymentsForCaller(ctx context.Context, caller domain.CallerIdentity) ([]*domain.UnsettledPayment, error) {
	if caller.IsService() {
		return s.FindUnsettledPayments(ctx)
	}
	return s.repo.ListUnsettledByPayer(ctx, caller.UserID,
		[]domain.SettlementStatus{domain.SettlementPending, domain.SettlementRejected},
		s.batchSize)
}

// ReconcileOnce retries every pending payment once. Payments of the same loan
// are handled in order, one at a time; only one pass runs at a time.
func (s *ReconcileService) ReconcileOnce(ctx context.Context) (*ReconcileReport, error) {
	s.pass.Lock()
	defer s.pass.Unlock()

	pending, err := s.repo.ListUnsettled(ctx, []domain.SettlementStatus{domain.SettlementPending}, s.batchSize)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{}
	if len(pending) == 0 {
		return report, nil
	}

	// group by loan, keeping the oldest-first order inside each group
	var order []uint
	groups := make(map[uint][]*domain.UnsettledPayment)
	for _, p := range pending {
		id := p.Payment.LoanID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], p)
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, reconcileWorkers)
	)
	for _, loanID := range order {
		group := groups[loanID]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			for _, p := range group {
				if ctx.Err() != nil {
					return
				}
				outcome := s.reconcile(ctx, p.Payment, false)

				mu.Lock()
				report.Examined++
				tally(report, outcome)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.log.WithFields(logrus.Fields{
		"examined":      report.Examined,
		"settled":       report.Settled,
		"rejected":      report.Rejected,
		"still_pending": report.StillPending,
	}).Info("reconciliation pass finished")
	return report, ctx.Err()
}

// ReconcilePayment retries one payment on operator request, rejected ones included
func (s *ReconcileService) ReconcilePayment(ctx context.Context, paymentID uint) (*PaymentOutcome, error) {
	payment, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, payment, true), nil
}

// ReconcilePaymentForCaller is ReconcilePayment for a payment the caller made.
// Service callers may retry any payment.
func (s *ReconcileService) ReconcilePaymentForCaller(ctx context.Context, caller domain.CallerIdentity, paymentID uint) (*PaymentOutcome, error) {
	payment, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !caller.IsService() && payment.PayerID != caller.UserID {
		return nil, domain.ErrForbidden
	}
	return s.reconcile(ctx, payment, true), nil
}

// reconcile brings one payment's settlement up to date with the ledger
func (s *ReconcileService) reconcile(ctx context.Context, payment *domain.Payment, includeRejected bool) *PaymentOutcome {
	unlock := s.payments.locks.Lock(payment.LoanID)
	defer unlock()

	outcome := &PaymentOutcome{Payment: payment}

	// re-read under the lock: a concurrent RecordPayment may have settled it
	settlement, err := s.repo.GetSettlement(ctx, payment.ID)
	if err != nil {
		outcome.Status = OutcomeDegraded
		outcome.FailureKind = domain.KindOf(err)
		outcome.FailureMessage = domain.MessageOf(err)
		return outcome
	}
	outcome.Settlement = settlement

	switch settlement.Status {
	case domain.SettlementSettled:
		outcome.Status = OutcomeSettled
		return outcome
	case domain.SettlementRejected:
		if !includeRejected {
			outcome.Status = OutcomeDegraded
			outcome.FailureKind = settlement.LastErrorKind
			outcome.FailureMessage = settlement.LastError
			return outcome
		}
	}

	// the payer is the identity the loan service checks ownership against
	caller := domain.CallerIdentity{UserID: payment.PayerID}

	applied, err := s.alreadyApplied(ctx, caller, payment)
	if err != nil {
		s.log.WithError(err).WithField("payment_id", payment.ID).Debug("applied-token lookup failed, resending")
	}
	if applied {
		settlement.Attempts++
		s.payments.markSettled(settlement, nil)
		s.payments.saveSettlement(ctx, payment, settlement)
		outcome.Status = OutcomeSettled
		return outcome
	}

	return s.payments.settleLocked(ctx, caller, payment, settlement)
}

func (s *ReconcileService) alreadyApplied(ctx context.Context, caller domain.CallerIdentity, payment *domain.Payment) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.payments.callTimeout)
	defer cancel()
	return s.payments.ledger.IsPaymentApplied(callCtx, caller, payment.LoanID, payment.TransactionID)
}

func tally(report *ReconcileReport, outcome *PaymentOutcome) {
	switch {
	case outcome.Status == OutcomeSettled:
		report.Settled++
	case outcome.Settlement != nil && outcome.Settlement.Status == domain.SettlementRejected:
		report.Rejected++
	default:
		report.StillPending++
	}
}
