package jwt

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

const issuer = "bes-loan"

// Token roles
const (
	RoleUser    = "USER"
	RoleService = "SERVICE" // minted by one service to act on behalf of a user
)

// Claims represents the JWT claims
type Claims struct {
	UserID        uint   `json:"user_id"`
	Username      string `json:"username"`
	MonthlyIncome string `json:"monthly_income"`
	Role          string `json:"role"`
	jwt.RegisteredClaims
}

// TokenInput holds the identity fields baked into an access token
type TokenInput struct {
	UserID        uint
	Username      string
	MonthlyIncome string
	Role          string
}

// GenerateAccessToken generates a new access token valid for ttl from now
func GenerateAccessToken(in TokenInput, secret string, ttl time.Duration, now time.Time) (string, error) {
	if in.Role == "" {
		in.Role = RoleUser
	}

	claims := Claims{
		UserID:        in.UserID,
		Username:      in.Username,
		MonthlyIncome: in.MonthlyIncome,
		Role:          in.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   strconv.FormatUint(uint64(in.UserID), 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAccessToken validates an access token and returns claims.
// now is the verification time, so callers with an injected clock stay consistent.
func ValidateAccessToken(tokenString, secret string, now time.Time) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrTokenInvalid
}
