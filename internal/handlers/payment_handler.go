package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/rachid-J/Asssurance-sub001/internal/models"
	"github.com/rachid-J/Asssurance-sub001/internal/services"
	"github.com/rachid-J/Asssurance-sub001/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) Register(app *fiber.App) {
	protectedGr := app.Group("assurance/protected/api/v1")

	paymentGroup := protectedGr.Group("/policies/:id/payments")
	paymentGroup.Post("/pay", h.PayInstallment)   // POST /policies/:id/payments/pay
	paymentGroup.Get("/progress", h.GetProgress)  // GET /policies/:id/payments/progress
	protectedGr.Post("/policies/:id/refunds", h.RecordRefund) // POST /policies/:id/refunds
}

func (h *PaymentHandler) PayInstallment(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := parsePolicyID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid policy id"))
	}

	var req models.PayInstallmentRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body: "+err.Error()))
	}

	entry, err := h.paymentService.PayInstallment(c.Context(), actor, id, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(entry))
}

func (h *PaymentHandler) RecordRefund(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := parsePolicyID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid policy id"))
	}

	var req models.RecordRefundRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body: "+err.Error()))
	}

	entry, err := h.paymentService.RecordRefund(c.Context(), actor, id, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(entry))
}

func (h *PaymentHandler) GetProgress(c fiber.Ctx) error {
	if _, ok := actorFrom(c); !ok {
		return unauthorized(c)
	}

	id, err := parsePolicyID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid policy id"))
	}

	progress, err := h.paymentService.Progress(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(progress))
}
