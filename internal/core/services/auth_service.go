package services

import (
	"context"
	"errors"
	"strings"

	"bes-loan/internal/adapters/persistence/repositories"
	"bes-loan/internal/core/domain"
	"bes-loan/internal/pkg/password"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AuthService handles account registration and login
type AuthService struct {
	userRepo repositories.UserRepository
	issuer   CredentialIssuer
	hashCost int
	log      logrus.FieldLogger
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo repositories.UserRepository, issuer CredentialIssuer, log logrus.FieldLogger) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		issuer:   issuer,
		hashCost: password.DefaultCost,
		log:      log,
	}
}

// WithHashCost overrides the bcrypt cost
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.hashCost = cost
	return s
}

// RegisterInput represents registration input
type RegisterInput struct {
	Username      string          `json:"username" validate:"required,min=3,max=50"`
	Email         string          `json:"email" validate:"required,email"`
	Password      string          `json:"password" validate:"required,min=6"`
	MonthlyIncome decimal.Decimal `json:"monthly_income" validate:"gte=0"`
}

// LoginInput represents login input
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is a user together with a fresh access token
type AuthResult struct {
	User        *domain.User
	AccessToken string
}

// Register registers a new user
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if !password.ValidatePassword(input.Password) {
		return nil, domain.NewValidationError("password must be at least %d characters", password.MinLength)
	}
	if input.MonthlyIncome.IsNegative() {
		return nil, domain.NewValidationError("monthly_income cannot be negative")
	}

	// 1. Check if username already exists
	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrUserAlreadyExists
	}

	// 2. Check if email already exists
	exists, err = s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrEmailAlreadyExists
	}

	// 3. Hash password
	hashed, err := password.HashWithCost(input.Password, s.hashCost)
	if err != nil {
		return nil, err
	}

	// 4. Create user
	user := &domain.User{
		Username:      username,
		Email:         email,
		Password:      hashed,
		MonthlyIncome: input.MonthlyIncome,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	// 5. Issue token
	token, err := s.issuer.Issue(user.Identity())
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("user registered")
	return &AuthResult{User: user, AccessToken: token}, nil
}

// Login authenticates a user by username and password
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResult, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(input.Password, user.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(user.Identity())
	if err != nil {
		return nil, err
	}

	s.log.WithField("user_id", user.ID).Info("user logged in")
	return &AuthResult{User: user, AccessToken: token}, nil
}

// GetUserByID gets a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID uint) (*domain.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}
