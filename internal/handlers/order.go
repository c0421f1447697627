package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"payflow/internal/services/charge"
	"payflow/internal/services/orders"
	"payflow/internal/utils"
)

type OrderHandler struct {
	orderService  orders.Service
	chargeService charge.Service
}

func NewOrderHandler(orderService orders.Service, chargeService charge.Service) *OrderHandler {
	return &OrderHandler{
		orderService:  orderService,
		chargeService: chargeService,
	}
}

func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var input orders.CreateOrderRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if input.CustomerID == "" {
		return utils.BadRequest(c, "customer_id is required")
	}

	order, err := h.orderService.CreateOrder(c.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrInvalidAmount):
			return utils.BadRequest(c, "Amount must be greater than 0")
		case errors.Is(err, orders.ErrInvalidCount):
			return utils.BadRequest(c, "Installment count must be greater than 0")
		}
		return utils.InternalError(c, "Failed to create order")
	}
	return utils.Created(c, fiber.Map{"order": order})
}

func (h *OrderHandler) ActivateOrder(c *fiber.Ctx) error {
	order, err := h.orderService.ActivateOrder(c.Context(), c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			return utils.NotFound(c, "Order not found")
		case errors.Is(err, orders.ErrNotActivatable):
			return utils.Conflict(c, err.Error())
		}
		return utils.InternalError(c, "Failed to activate order")
	}
	return utils.Success(c, fiber.Map{"order": order})
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.orderService.GetOrder(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return utils.NotFound(c, "Order not found")
		}
		return utils.InternalError(c, "Failed to get order")
	}
	installments, err := h.orderService.ListInstallments(c.Context(), order.ID)
	if err != nil {
		return utils.InternalError(c, "Failed to list installments")
	}
	order.Installments = installments
	return utils.Success(c, fiber.Map{"order": order})
}

func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	list, err := h.orderService.ListOrders(c.Context(),
		c.Query("customer_id"), c.Query("status"),
		c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return utils.InternalError(c, "Failed to list orders")
	}
	return utils.Success(c, fiber.Map{"orders": list})
}

func (h *OrderHandler) ListInstallments(c *fiber.Ctx) error {
	installments, err := h.orderService.ListInstallments(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, orders.ErrOrderNotFound) {
			return utils.NotFound(c, "Order not found")
		}
		return utils.InternalError(c, "Failed to list installments")
	}
	return utils.Success(c, fiber.Map{"installments": installments})
}

// ListDueInstallments reports what the scheduler would pick up right now.
func (h *OrderHandler) ListDueInstallments(c *fiber.Ctx) error {
	due, err := h.orderService.ListDueInstallments(c.Context(), time.Now(), c.QueryInt("limit", 50))
	if err != nil {
		return utils.InternalError(c, "Failed to list due installments")
	}
	return utils.Success(c, fiber.Map{"installments": due})
}

// ProcessInstallment triggers one charge attempt out of band of the
// scheduler, for operators replaying a stuck installment.
func (h *OrderHandler) ProcessInstallment(c *fiber.Ctx) error {
	installment, err := h.orderService.GetInstallment(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, orders.ErrInstallmentNotFound) {
			return utils.NotFound(c, "Installment not found")
		}
		return utils.InternalError(c, "Failed to get installment")
	}

	result, err := h.chargeService.ProcessInstallment(c.Context(), installment)
	if err != nil {
		if errors.Is(err, charge.ErrKeyConflict) {
			return utils.Conflict(c, "Idempotency key conflict")
		}
		return utils.InternalError(c, "Failed to process installment")
	}
	return utils.Success(c, fiber.Map{"charge": result})
}
