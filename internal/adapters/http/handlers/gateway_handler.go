package handlers

import (
	"time"

	"bes-loan/internal/config"
	"bes-loan/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
	"github.com/sirupsen/logrus"
)

// GatewayHandler forwards API requests to the owning service
type GatewayHandler struct {
	services config.ServicesConfig
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewGatewayHandler creates a new gateway handler
func NewGatewayHandler(services config.ServicesConfig, timeout time.Duration, log logrus.FieldLogger) *GatewayHandler {
	return &GatewayHandler{
		services: services,
		timeout:  timeout,
		log:      log,
	}
}

// Auth forwards to the auth service
func (h *GatewayHandler) Auth(c *fiber.Ctx) error {
	return h.forward(c, h.services.AuthURL)
}

// Loans forwards to the loan service
func (h *GatewayHandler) Loans(c *fiber.Ctx) error {
	return h.forward(c, h.services.LoanURL)
}

// Payments forwards to the payment service
func (h *GatewayHandler) Payments(c *fiber.Ctx) error {
	return h.forward(c, h.services.PaymentURL)
}

func (h *GatewayHandler) forward(c *fiber.Ctx, baseURL string) error {
	target := baseURL + c.OriginalURL()

	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		c.Request().Header.Set(fiber.HeaderXRequestID, id)
	}

	if err := proxy.DoTimeout(c, target, h.timeout); err != nil {
		h.log.WithError(err).WithField("target", target).Warn("gateway forward failed")
		return response.Error(c, fiber.StatusBadGateway, "Gateway Error")
	}
	return nil
}
