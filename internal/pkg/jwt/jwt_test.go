package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Parallel()

	secret := "test-secret-that-is-long-enough-for-testing"
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	token, err := GenerateAccessToken(TokenInput{
		UserID:        7,
		Username:      "alice",
		MonthlyIncome: "3500",
	}, secret, time.Hour, issuedAt)
	require.NoError(t, err)

	t.Run("valid token returns claims", func(t *testing.T) {
		t.Parallel()
		claims, err := ValidateAccessToken(token, secret, issuedAt.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, uint(7), claims.UserID)
		assert.Equal(t, "alice", claims.Username)
		assert.Equal(t, "3500", claims.MonthlyIncome)
		assert.Equal(t, RoleUser, claims.Role)
		assert.Equal(t, "7", claims.Subject)
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		_, err := ValidateAccessToken(token, secret, issuedAt.Add(2*time.Hour))
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		_, err := ValidateAccessToken(token, "another-secret-that-is-long-enough", issuedAt)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		t.Parallel()
		_, err := ValidateAccessToken("not.a.token", secret, issuedAt)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
