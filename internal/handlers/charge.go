package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"payflow/internal/repositories"
	"payflow/internal/services/charge"
	"payflow/internal/utils"
)

type ChargeHandler struct {
	chargeService charge.Service
}

func NewChargeHandler(chargeService charge.Service) *ChargeHandler {
	return &ChargeHandler{chargeService: chargeService}
}

// CreateCharge accepts an ad-hoc charge. Clients supply the idempotency key
// so a retried request resolves to the original charge.
func (h *ChargeHandler) CreateCharge(c *fiber.Ctx) error {
	var input charge.Request
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if input.CustomerID == "" {
		return utils.BadRequest(c, "customer_id is required")
	}
	if input.IdempotencyKey == "" {
		return utils.BadRequest(c, "idempotency_key is required")
	}

	created, err := h.chargeService.CreateCharge(c.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, charge.ErrInvalidAmount):
			return utils.BadRequest(c, "Amount must be greater than 0")
		case errors.Is(err, charge.ErrInvalidSplit):
			return utils.BadRequest(c, err.Error())
		case errors.Is(err, charge.ErrKeyConflict):
			return utils.Conflict(c, "Idempotency key was used with different parameters")
		}
		return utils.InternalError(c, "Failed to create charge")
	}
	return utils.Created(c, fiber.Map{"charge": created})
}

func (h *ChargeHandler) GetCharge(c *fiber.Ctx) error {
	found, err := h.chargeService.GetCharge(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrChargeNotFound) {
			return utils.NotFound(c, "Charge not found")
		}
		return utils.InternalError(c, "Failed to get charge")
	}
	return utils.Success(c, fiber.Map{"charge": found})
}

func (h *ChargeHandler) ListCharges(c *fiber.Ctx) error {
	list, err := h.chargeService.ListCharges(c.Context(),
		c.Query("customer_id"), c.Query("status"),
		c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return utils.InternalError(c, "Failed to list charges")
	}
	return utils.Success(c, fiber.Map{"charges": list})
}
