package models

import (
	"time"

	"bes-loan/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Auth service tables
// ============================================================

// User represents users table
type User struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Username      string          `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Email         string          `gorm:"uniqueIndex;size:100;not null" json:"email"`
	Password      string          `gorm:"size:255;not null" json:"-"`
	MonthlyIncome decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"monthly_income"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// ToDomain converts the row to a domain user
func (u *User) ToDomain() *domain.User {
	return &domain.User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Password:      u.Password,
		MonthlyIncome: u.MonthlyIncome,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// UserFromDomain converts a domain user to a row
func UserFromDomain(u *domain.User) *User {
	return &User{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Password:      u.Password,
		MonthlyIncome: u.MonthlyIncome,
	}
}

// MigrateAuth creates the auth service tables
func MigrateAuth(db *gorm.DB) error {
	return db.AutoMigrate(&User{})
}
