package handlers

import (
	"bes-loan/internal/core/domain"
	"bes-loan/internal/core/services"
	"bes-loan/internal/pkg/response"
	"bes-loan/internal/pkg/validate"

	"github.com/gofiber/fiber/v2"
)

// LoanHandler handles loan endpoints
type LoanHandler struct {
	loanService *services.LoanService
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService *services.LoanService) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

// UpdateStatusRequest represents a status change request body
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Create handles a loan application
// @Summary Apply for a loan
// @Description Create a pending loan after the issuance policy checks
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.IssueLoanInput true "Loan application"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /loans [post]
func (h *LoanHandler) Create(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}

	var input services.IssueLoanInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&input); err != nil {
		return response.FromError(c, err)
	}

	loan, err := h.loanService.IssueLoan(c.UserContext(), identity, &input)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Loan created successfully", toLoanResponse(loan))
}

// List returns the caller's loans
// @Summary List own loans
// @Description Get every loan owned by the caller
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /loans [get]
func (h *LoanHandler) List(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}

	loans, err := h.loanService.ListLoansForOwner(c.UserContext(), identity.UserID)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Loans retrieved successfully", toLoanResponses(loans))
}

// Get returns one of the caller's loans
// @Summary Get loan by ID
// @Description Get one of the caller's loans
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	loan, err := h.loanService.GetLoanForCaller(c.UserContext(), identity, id)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Loan retrieved successfully", toLoanResponse(loan))
}

// UpdateStatus handles an administrative status transition
// @Summary Update loan status
// @Description Move a loan through its lifecycle. Paid is only reachable through payments
// @Tags Loans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param body body UpdateStatusRequest true "New status"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/{id}/status [put]
func (h *LoanHandler) UpdateStatus(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return response.FromError(c, err)
	}

	loan, err := h.loanService.SetStatus(c.UserContext(), identity, id, req.Status)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Loan status updated successfully", toLoanResponse(loan))
}

// ApplyPayment applies a recorded payment to the loan balance.
// A replayed idempotency token answers 409 AlreadyApplied with the current balance.
// @Summary Apply payment
// @Description Apply a recorded payment to the loan balance (service credentials only)
// @Tags Ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param body body services.ApplyPaymentInput true "Amount and idempotency token"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /loans/{id}/payment [put]
func (h *LoanHandler) ApplyPayment(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	var input services.ApplyPaymentInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	input.LoanID = id

	result, err := h.loanService.ApplyPayment(c.UserContext(), identity, &input)
	if err != nil {
		return response.FromError(c, err)
	}

	balance := result.Loan.Balance()
	if result.Replayed {
		balance.Replayed = true
		return response.ErrorWithData(c, fiber.StatusConflict,
			string(domain.KindAlreadyApplied), domain.ErrAlreadyApplied.Message, toBalanceResponse(balance))
	}

	return response.Success(c, "Payment applied successfully", toBalanceResponse(balance))
}

// GetAppliedPayment answers whether an idempotency token was applied to the loan
// @Summary Get applied payment
// @Description Look up a payment by its idempotency token (service credentials only)
// @Tags Ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Loan ID"
// @Param token path string true "Idempotency token"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /loans/{id}/payments/{token} [get]
func (h *LoanHandler) GetAppliedPayment(c *fiber.Ctx) error {
	identity, err := caller(c)
	if err != nil {
		return response.FromError(c, err)
	}
	id, err := paramID(c, "id")
	if err != nil {
		return response.FromError(c, err)
	}

	applied, err := h.loanService.GetAppliedPayment(c.UserContext(), identity, id, c.Params("token"))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Payment applied", &AppliedPaymentResponse{
		LoanID:         applied.LoanID,
		Token:          applied.Token,
		Amount:         applied.Amount,
		RemainingAfter: applied.RemainingAfter,
		AppliedAt:      applied.AppliedAt,
	})
}
