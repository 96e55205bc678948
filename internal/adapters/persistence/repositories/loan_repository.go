package repositories

import (
	"context"

	"bes-loan/internal/adapters/persistence/models"
	"bes-loan/internal/core/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLoanRepository handles loan data access
type GormLoanRepository struct {
	db *gorm.DB
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *gorm.DB) *GormLoanRepository {
	return &GormLoanRepository{db: db}
}

// Create creates a new loan and fills in its ID
func (r *GormLoanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	row := models.LoanFromDomain(loan)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return domain.NewStorageFailure("create loan", err)
	}
	loan.ID = row.ID
	loan.CreatedAt = row.CreatedAt
	loan.UpdatedAt = row.UpdatedAt
	return nil
}

// GetByID gets a loan by ID
func (r *GormLoanRepository) GetByID(ctx context.Context, id uint) (*domain.Loan, error) {
	var row models.Loan
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translate(err, domain.ErrLoanNotFound, "get loan")
	}
	return row.ToDomain(), nil
}

// ListByOwner lists an owner's loans in insertion order
func (r *GormLoanRepository) ListByOwner(ctx context.Context, ownerID uint) ([]*domain.Loan, error) {
	var rows []*models.Loan
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewStorageFailure("list loans", err)
	}

	loans := make([]*domain.Loan, 0, len(rows))
	for _, row := range rows {
		loans = append(loans, row.ToDomain())
	}
	return loans, nil
}

// CountByOwnerAndStatus counts an owner's loans in any of the given statuses
func (r *GormLoanRepository) CountByOwnerAndStatus(ctx context.Context, ownerID uint, statuses []domain.LoanStatus) (int64, error) {
	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("owner_id = ? AND status IN ?", ownerID, values).
		Count(&count).Error
	if err != nil {
		return 0, domain.NewStorageFailure("count loans", err)
	}
	return count, nil
}

// GetAppliedPayment looks up an applied idempotency token outside any lock
func (r *GormLoanRepository) GetAppliedPayment(ctx context.Context, loanID uint, token string) (*domain.AppliedPayment, error) {
	return getAppliedPayment(r.db.WithContext(ctx), loanID, token)
}

// WithLoanLocked runs fn inside a transaction holding the loan's row lock.
// sqlite has no row locks; there the single-writer connection serializes instead.
func (r *GormLoanRepository) WithLoanLocked(ctx context.Context, id uint, fn func(tx LoanTx, loan *domain.Loan) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx
		if tx.Dialector.Name() != "sqlite" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var row models.Loan
		if err := query.First(&row, id).Error; err != nil {
			return translate(err, domain.ErrLoanNotFound, "lock loan")
		}

		return fn(&gormLoanTx{db: tx}, row.ToDomain())
	})
	return translate(err, domain.ErrLoanNotFound, "commit loan transaction")
}

// gormLoanTx implements LoanTx on an open transaction
type gormLoanTx struct {
	db *gorm.DB
}

func (t *gormLoanTx) GetAppliedPayment(ctx context.Context, loanID uint, token string) (*domain.AppliedPayment, error) {
	return getAppliedPayment(t.db.WithContext(ctx), loanID, token)
}

func (t *gormLoanTx) SaveBalance(ctx context.Context, loan *domain.Loan) error {
	return t.update(ctx, loan.ID, map[string]interface{}{
		"remaining_amount": loan.RemainingAmount,
		"status":           string(loan.Status),
	})
}

func (t *gormLoanTx) SaveStatus(ctx context.Context, loan *domain.Loan) error {
	return t.update(ctx, loan.ID, map[string]interface{}{
		"status": string(loan.Status),
	})
}

func (t *gormLoanTx) update(ctx context.Context, id uint, fields map[string]interface{}) error {
	result := t.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return domain.NewStorageFailure("update loan", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrLoanNotFound
	}
	return nil
}

func (t *gormLoanTx) CreateAppliedPayment(ctx context.Context, applied *domain.AppliedPayment) error {
	row := &models.AppliedPayment{
		LoanID:         applied.LoanID,
		Token:          applied.Token,
		Amount:         applied.Amount,
		RemainingAfter: applied.RemainingAfter,
		AppliedAt:      applied.AppliedAt,
	}
	if err := t.db.WithContext(ctx).Create(row).Error; err != nil {
		return domain.NewStorageFailure("record applied payment", err)
	}
	applied.ID = row.ID
	return nil
}

func getAppliedPayment(db *gorm.DB, loanID uint, token string) (*domain.AppliedPayment, error) {
	var row models.AppliedPayment
	err := db.Where("loan_id = ? AND token = ?", loanID, token).First(&row).Error
	if err != nil {
		return nil, translate(err, domain.ErrNotFound, "get applied payment")
	}
	return row.ToDomain(), nil
}
