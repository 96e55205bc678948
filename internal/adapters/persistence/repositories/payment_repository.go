package repositories

import (
	"context"

	"bes-loan/internal/adapters/persistence/models"
	"bes-loan/internal/core/domain"

	"gorm.io/gorm"
)

// GormPaymentRepository handles payment data access
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create writes the payment row and a pending settlement together: both are durable or neither is
func (r *GormPaymentRepository) Create(ctx context.Context, payment *domain.Payment) (*domain.Settlement, error) {
	row := models.PaymentFromDomain(payment)
	settlement := &models.PaymentSettlement{Status: string(domain.SettlementPending)}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		settlement.PaymentID = row.ID
		return tx.Create(settlement).Error
	})
	if err != nil {
		return nil, domain.NewStorageFailure("record payment", err)
	}

	payment.ID = row.ID
	return settlement.ToDomain(), nil
}

// GetByID gets a payment by ID
func (r *GormPaymentRepository) GetByID(ctx context.Context, id uint) (*domain.Payment, error) {
	var row models.Payment
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translate(err, domain.ErrPaymentNotFound, "get payment")
	}
	return row.ToDomain(), nil
}

// ListByLoan lists payments made against a loan, oldest first
func (r *GormPaymentRepository) ListByLoan(ctx context.Context, loanID uint) ([]*domain.Payment, error) {
	return r.list(ctx, "loan_id = ?", loanID)
}

// ListByPayer lists payments made by a user, oldest first
func (r *GormPaymentRepository) ListByPayer(ctx context.Context, payerID uint) ([]*domain.Payment, error) {
	return r.list(ctx, "payer_id = ?", payerID)
}

func (r *GormPaymentRepository) list(ctx context.Context, where string, arg interface{}) ([]*domain.Payment, error) {
	var rows []*models.Payment
	err := r.db.WithContext(ctx).
		Where(where, arg).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewStorageFailure("list payments", err)
	}

	payments := make([]*domain.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.ToDomain())
	}
	return payments, nil
}

// GetSettlement gets the settlement record of a payment
func (r *GormPaymentRepository) GetSettlement(ctx context.Context, paymentID uint) (*domain.Settlement, error) {
	var row models.PaymentSettlement
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).First(&row).Error
	if err != nil {
		return nil, translate(err, domain.ErrPaymentNotFound, "get settlement")
	}
	return row.ToDomain(), nil
}

// UpdateSettlement stores the latest settlement state
func (r *GormPaymentRepository) UpdateSettlement(ctx context.Context, settlement *domain.Settlement) error {
	row := models.SettlementFromDomain(settlement)
	result := r.db.WithContext(ctx).
		Model(&models.PaymentSettlement{}).
		Where("payment_id = ?", settlement.PaymentID).
		Updates(map[string]interface{}{
			"status":          row.Status,
			"attempts":        row.Attempts,
			"last_error_kind": row.LastErrorKind,
			"last_error":      row.LastError,
			"remaining_after": row.RemainingAfter,
			"settled_at":      row.SettledAt,
		})
	if result.Error != nil {
		return domain.NewStorageFailure("update settlement", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// ListUnsettled returns payments whose settlement is in one of statuses, oldest first
func (r *GormPaymentRepository) ListUnsettled(ctx context.Context, statuses []domain.SettlementStatus, limit int) ([]*domain.UnsettledPayment, error) {
	return r.listUnsettled(ctx, 0, statuses, limit)
}

// ListUnsettledByPayer is ListUnsettled restricted to one payer's payments
func (r *GormPaymentRepository) ListUnsettledByPayer(ctx context.Context, payerID uint, statuses []domain.SettlementStatus, limit int) ([]*domain.UnsettledPayment, error) {
	return r.listUnsettled(ctx, payerID, statuses, limit)
}

// listUnsettled lists unsettled payments; payerID 0 means every payer
func (r *GormPaymentRepository) listUnsettled(ctx context.Context, payerID uint, statuses []domain.SettlementStatus, limit int) ([]*domain.UnsettledPayment, error) {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	query := r.db.WithContext(ctx).Where("status IN ?", values)
	if payerID != 0 {
		query = query.Where("payment_id IN (?)",
			r.db.Model(&models.Payment{}).Select("id").Where("payer_id = ?", payerID))
	}

	var settlements []*models.PaymentSettlement
	err := query.
		Order("payment_id ASC").
		Limit(limit).
		Find(&settlements).Error
	if err != nil {
		return nil, domain.NewStorageFailure("list unsettled payments", err)
	}
	if len(settlements) == 0 {
		return []*domain.UnsettledPayment{}, nil
	}

	ids := make([]uint, 0, len(settlements))
	for _, s := range settlements {
		ids = append(ids, s.PaymentID)
	}

	var payments []*models.Payment
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&payments).Error; err != nil {
		return nil, domain.NewStorageFailure("list unsettled payments", err)
	}
	byID := make(map[uint]*models.Payment, len(payments))
	for _, p := range payments {
		byID[p.ID] = p
	}

	result := make([]*domain.UnsettledPayment, 0, len(settlements))
	for _, s := range settlements {
		p, ok := byID[s.PaymentID]
		if !ok {
			continue
		}
		result = append(result, &domain.UnsettledPayment{
			Payment:    p.ToDomain(),
			Settlement: s.ToDomain(),
		})
	}
	return result, nil
}
