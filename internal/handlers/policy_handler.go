package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rachid-J/Asssurance-sub001/internal/apperr"
	"github.com/rachid-J/Asssurance-sub001/internal/models"
	"github.com/rachid-J/Asssurance-sub001/internal/services"
	"github.com/rachid-J/Asssurance-sub001/internal/utils"
)

// actorFrom pulls the acting identity from the gateway headers. Identity
// is established upstream; the engine only records and compares it.
func actorFrom(c fiber.Ctx) (services.Actor, bool) {
	userID := c.Get("X-User-ID")
	if userID == "" {
		return services.Actor{}, false
	}
	return services.Actor{
		UserID: userID,
		Role:   c.Get("X-User-Role"),
	}, true
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(http.StatusUnauthorized).JSON(
		utils.CreateErrorResponse("UNAUTHORIZED", "User ID is required"))
}

// respondError maps a service error to its status code and envelope.
func respondError(c fiber.Ctx, err error) error {
	return c.Status(apperr.HTTPStatus(err)).JSON(
		utils.CreateErrorResponse(apperr.Code(err), err.Error()))
}

func parsePolicyID(c fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("id"))
}

type PolicyHandler struct {
	policyService       *services.PolicyService
	renewalService      *services.RenewalService
	cancellationService *services.CancellationService
	expirationService   *services.ExpirationService
}

func NewPolicyHandler(
	policyService *services.PolicyService,
	renewalService *services.RenewalService,
	cancellationService *services.CancellationService,
	expirationService *services.ExpirationService,
) *PolicyHandler {
	return &PolicyHandler{
		policyService:       policyService,
		renewalService:      renewalService,
		cancellationService: cancellationService,
		expirationService:   expirationService,
	}
}

func (h *PolicyHandler) Register(app *fiber.App) {
	protectedGr := app.Group("assurance/protected/api/v1")

	policyGroup := protectedGr.Group("/policies")
	policyGroup.Post("/", h.CreatePolicy)            // POST /policies - issue a new policy
	policyGroup.Post("/renew", h.RenewPolicy)        // POST /policies/renew - chain a renewal onto a vehicle
	policyGroup.Get("/", h.ListPolicies)             // GET /policies - list with filters
	policyGroup.Get("/:id", h.GetPolicy)             // GET /policies/:id
	policyGroup.Patch("/:id", h.UpdatePolicy)        // PATCH /policies/:id - edit terms
	policyGroup.Post("/:id/cancel", h.CancelPolicy)  // POST /policies/:id/cancel
	policyGroup.Post("/:id/terminate", h.Terminate)  // POST /policies/:id/terminate - resale conversion
	policyGroup.Get("/:id/ledger", h.GetLedger)      // GET /policies/:id/ledger - audit view
	protectedGr.Get("/sweeper/health", h.SweeperHealth)
}

func (h *PolicyHandler) CreatePolicy(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req models.CreatePolicyRequest
	if err := c.Bind().Body(&req); err != nil {
		slog.Error("error parsing request", "error", err)
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body: "+err.Error()))
	}

	policy, err := h.policyService.Create(c.Context(), actor, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(policy))
}

func (h *PolicyHandler) RenewPolicy(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req models.RenewPolicyRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body: "+err.Error()))
	}

	policy, err := h.renewalService.Renew(c.Context(), actor, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(utils.CreateSuccessResponse(policy))
}

func (h *PolicyHandler) ListPolicies(c fiber.Ctx) error {
	if _, ok := actorFrom(c); !ok {
		return unauthorized(c)
	}

	var filter models.PolicyFilter
	if err := c.Bind().Query(&filter); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid query: "+err.Error()))
	}

	policies, err := h.policyService.List(c.Context(), filter)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(policies))
}

func (h *PolicyHandler) GetPolicy(c fiber.Ctx) error {
	if _, ok := actorFrom(c); !ok {
		return unauthorized(c)
	}

	id, err := parsePolicyID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid policy id"))
	}

	policy, err := h.policyService.Get(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(policy))
}

func (h *PolicyHandler) UpdatePolicy(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := parsePolicyID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid policy id"))
	}

	var req models.UpdatePolicyRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body: "+err.Error()))
	}

	policy, err := h.policyService.UpdateTerms(c.Context(), actor, id, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(policy))
}

func (h *PolicyHandler) CancelPolicy(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := parsePolicyID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid policy id"))
	}

	var directive models.RefundDirective
	if err := c.Bind().Body(&directive); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body: "+err.Error()))
	}

	result, err := h.cancellationService.Cancel(c.Context(), actor, id, directive)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(result))
}

func (h *PolicyHandler) Terminate(c fiber.Ctx) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	id, err := parsePolicyID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid policy id"))
	}

	var req models.TerminationRequest
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid request body: "+err.Error()))
	}

	policy, err := h.cancellationService.Terminate(c.Context(), actor, id, req)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(policy))
}

func (h *PolicyHandler) GetLedger(c fiber.Ctx) error {
	if _, ok := actorFrom(c); !ok {
		return unauthorized(c)
	}

	id, err := parsePolicyID(c)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(
			utils.CreateErrorResponse("INVALID_REQUEST", "Invalid policy id"))
	}

	entries, err := h.policyService.Ledger(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(entries))
}

func (h *PolicyHandler) SweeperHealth(c fiber.Ctx) error {
	if err := h.expirationService.HealthCheck(); err != nil {
		return c.Status(http.StatusServiceUnavailable).JSON(
			utils.CreateErrorResponse("SWEEPER_UNHEALTHY", err.Error()))
	}
	return c.Status(http.StatusOK).JSON(utils.CreateSuccessResponse(h.expirationService.GetStats()))
}
