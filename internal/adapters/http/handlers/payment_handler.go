package handlers

import (
	"bes-loan/internal/core/domain"
	"bes-loan/internal/core/services"
	"bes-loan/internal/pkg/response"
	"bes-loan/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

const degradedMessage = "Payment recorded, loan balance not yet applied"

// PaymentHandler handles payment and reconciliation endpoints
type PaymentHandler struct {
	paymentService   *services.PaymentService
	reconcileService *services.ReconcileService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService *services.PaymentService, reconcileService *services.ReconcileService) *PaymentHandler {
	return &PaymentHandler{
		paymentService:   paymentService,
		reconcileService: reconcileService,
	}
}

// Create records a payment. A settled payment answers 201; a payment recorded
// without a confirmed balance update answers 202 with the failure kind.
// @Summary Record payment
// @Description Record a payment and settle it against the loan ledger
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.RecordPaymentInput true "Payment data"
// @Success 201 {object} response.Response
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /payments [post]
func (h *PaymentHandler) Create(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}

	var input services.RecordPaymentInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&input); err != nil {
		return response.FromError(c, err)
	}

	outcome, err := h.paymentService.RecordPayment(c.UserContext(), identity, &input)
	if err != nil {
		return response.FromError(c, err)
	}

	body := toOutcomeResponse(outcome)
	if outcome.Status == services.OutcomeSettled {
		return response.Created(c, "Payment processed successfully", body)
	}
	return response.Accepted(c, degradedMessage, body)
}

// List returns the caller's payments
// @Summary List own payments
// @Description Get every payment made by the caller
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /payments [get]
func (h *PaymentHandler) List(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}

	payments, err := h.paymentService.ListPaymentsForOwner(c.UserContext(), identity.UserID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Payments retrieved successfully", toPaymentResponses(payments))
}

// ListByLoan returns the caller's payments against a loan
// @Summary List payments by loan
// @Description Get the caller's payments against a loan
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param loanId path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /payments/loan/{loanId} [get]
func (h *PaymentHandler) ListByLoan(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	loanID, err := paramID(c, "loanId")
	if err != nil {
		return response.FromError(c, err)
	}

	payments, err := h.paymentService.ListPaymentsForLoan(c.UserContext(), loanID)
	if err != nil {
		return response.FromError(c, err)
	}

	// the payment service does not own loans; callers only see what they paid
	own := make([]*domain.Payment, 0, len(payments))
	for _, p := range payments {
		if p.PayerID == identity.UserID {
			own = append(own, p)
		}
	}

	return response.Success(c, "Payments retrieved successfully", toPaymentResponses(own))
}

// Get returns one of the caller's payments with its settlement state
// @Summary Get payment by ID
// @Description Get one of the caller's payments with its settlement state
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /payments/{id} [get]
func (h *PaymentHandler) Get(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	record, err := h.paymentService.GetPaymentForCaller(c.UserContext(), identity, id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Payment retrieved successfully",
		toPaymentRecordResponse(record.Payment, record.Settlement))
}

// ListUnsettled returns the caller's payments the loan ledger has not confirmed
// @Summary List unsettled payments
// @Description Get payments the loan ledger has not confirmed. Service callers see every payer
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /payments/unsettled [get]
func (h *PaymentHandler) ListUnsettled(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}

	unsettled, err := h.reconcileService.FindUnsettledPaymentsForCaller(c.UserContext(), identity)
	if err != nil {
		return response.FromError(c, err)
	}

	out := make([]*PaymentResponse, 0, len(unsettled))
	for _, u := range unsettled {
		out = append(out, toPaymentRecordResponse(u.Payment, u.Settlement))
	}
	return response.Success(c, "Unsettled payments retrieved successfully", out)
}

// ReconcileAll runs one reconciliation pass now
// @Summary Run reconciliation
// @Description Run one reconciliation pass over pending payments (service credentials only)
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 429 {object} response.Response
// @Router /payments/reconcile [post]
func (h *PaymentHandler) ReconcileAll(c *fiber.Ctx) error {
	report, err := h.reconcileService.ReconcileOnce(c.UserContext())
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Reconciliation pass finished", report)
}

// ReconcileOne retries a single payment of the caller, including rejected ones
// @Summary Retry payment settlement
// @Description Retry one payment, including a rejected one
// @Tags Reconciliation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Payment ID"
// @Success 200 {object} response.Response
// @Success 202 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /payments/{id}/reconcile [post]
func (h *PaymentHandler) ReconcileOne(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	outcome, err := h.reconcileService.ReconcilePaymentForCaller(c.UserContext(), identity, id)
	if err != nil {
		return response.FromError(c, err)
	}

	body := toOutcomeResponse(outcome)
	if outcome.Status == services.OutcomeSettled {
		return response.Success(c, "Payment settled", body)
	}
	return response.Accepted(c, degradedMessage, body)
}
