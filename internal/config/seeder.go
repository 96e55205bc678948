package config

import (
	"bes-loan/internal/adapters/persistence/models"
	"bes-loan/internal/pkg/password"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DemoUsername is the account the dev seeder creates
const DemoUsername = "demo"

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, log logrus.FieldLogger) *Seeder {
	return &Seeder{db: db, log: log}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	s.log.Info("running database seeders")

	if err := s.seedDemoUser(); err != nil {
		return err
	}

	s.log.Info("database seeding completed")
	return nil
}

// seedDemoUser creates a borrower that passes every loan rule.
// This is for development only.
func (s *Seeder) seedDemoUser() error {
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", DemoUsername).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashedPassword, err := password.Hash("demo123456")
	if err != nil {
		return err
	}

	demo := &models.User{
		Username:      DemoUsername,
		Email:         "demo@bes-loan.local",
		Password:      hashedPassword,
		MonthlyIncome: decimal.NewFromInt(3000),
	}
	if err := s.db.Create(demo).Error; err != nil {
		return err
	}

	s.log.WithField("username", demo.Username).Info("demo user created")
	return nil
}
