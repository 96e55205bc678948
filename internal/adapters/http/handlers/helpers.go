package handlers

import (
	"bes-loan/internal/adapters/http/middleware"
	"bes-loan/internal/core/domain"

	"github.com/gofiber/fiber/v2"
)

// paramID reads a positive numeric route parameter
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("invalid %s", name)
	}
	return uint(id), nil
}

// caller returns the authenticated identity, or ErrUnauthenticated when the route is unprotected
func caller(c *fiber.Ctx) (domain.CallerIdentity, error) {
	identity, ok := middleware.Caller(c)
	if !ok {
		return domain.CallerIdentity{}, domain.ErrUnauthenticated
	}
	return identity, nil
}
