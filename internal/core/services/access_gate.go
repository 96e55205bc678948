package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"bes-loan/internal/core/domain"
	"bes-loan/internal/pkg/jwt"

	"github.com/shopspring/decimal"
)

// AccessGate authenticates callers with HS256 tokens shared by all services
type AccessGate struct {
	secret     string
	accessTTL  time.Duration
	serviceTTL time.Duration
	now        func() time.Time
}

// NewAccessGate creates a new access gate
func NewAccessGate(secret string, accessTTL, serviceTTL time.Duration) *AccessGate {
	return &AccessGate{
		secret:     secret,
		accessTTL:  accessTTL,
		serviceTTL: serviceTTL,
		now:        time.Now,
	}
}

// WithClock replaces the gate's time source
func (g *AccessGate) WithClock(now func() time.Time) *AccessGate {
	g.now = now
	return g
}

// Authenticate validates credential and returns the identity snapshot it carries
func (g *AccessGate) Authenticate(ctx context.Context, credential string) (*domain.CallerIdentity, error) {
	credential = strings.TrimSpace(strings.TrimPrefix(credential, "Bearer "))
	if credential == "" {
		return nil, domain.ErrUnauthenticated
	}

	claims, err := jwt.ValidateAccessToken(credential, g.secret, g.now())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}
	if claims.UserID == 0 {
		return nil, domain.ErrTokenInvalid
	}

	income := decimal.Zero
	if claims.MonthlyIncome != "" {
		income, err = decimal.NewFromString(claims.MonthlyIncome)
		if err != nil {
			return nil, domain.ErrTokenInvalid
		}
	}

	role := claims.Role
	switch role {
	case "":
		role = domain.RoleUser
	case domain.RoleUser, domain.RoleService:
	default:
		return nil, domain.ErrTokenInvalid
	}

	return &domain.CallerIdentity{
		UserID:        claims.UserID,
		Username:      claims.Username,
		MonthlyIncome: income,
		Role:          role,
	}, nil
}

// Issue mints a user access token
func (g *AccessGate) Issue(identity domain.CallerIdentity) (string, error) {
	return g.issue(identity, domain.RoleUser, g.accessTTL)
}

// IssueOnBehalfOf mints a short-lived token one service uses to act for a user
func (g *AccessGate) IssueOnBehalfOf(identity domain.CallerIdentity) (string, error) {
	return g.issue(identity, domain.RoleService, g.serviceTTL)
}

func (g *AccessGate) issue(identity domain.CallerIdentity, role string, ttl time.Duration) (string, error) {
	return jwt.GenerateAccessToken(jwt.TokenInput{
		UserID:        identity.UserID,
		Username:      identity.Username,
		MonthlyIncome: identity.MonthlyIncome.String(),
		Role:          role,
	}, g.secret, ttl, g.now())
}
