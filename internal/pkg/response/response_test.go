package response

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"bes-loan/internal/core/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		kind    string
		message string
	}{
		{"not found", domain.ErrLoanNotFound, 404, "NotFound", "loan not found"},
		{"forbidden", domain.ErrNotLoanOwner, 403, "Forbidden", "not authorized to access this loan"},
		{"invalid state", domain.ErrLoanNotPayable, 409, "InvalidState", domain.ErrLoanNotPayable.Message},
		{"policy", domain.NewPolicyViolation(domain.RuleAmountRange, "too much"), 422, "PolicyViolation", "too much"},
		{"storage hides cause", domain.NewStorageFailure("create loan", errors.New("dsn secret")), 503, "StorageFailure", "Service temporarily unavailable"},
		{"foreign error", errors.New("boom"), 500, "InternalError", "Internal Server Error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return FromError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			var body Response
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.kind, body.Kind)
			assert.Equal(t, tt.message, body.Error)
		})
	}
}
