package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"payflow/internal/repositories"
	"payflow/internal/services/webhook"
	"payflow/internal/utils"
)

type WebhookHandler struct {
	webhookService webhook.Service
}

func NewWebhookHandler(webhookService webhook.Service) *WebhookHandler {
	return &WebhookHandler{webhookService: webhookService}
}

func (h *WebhookHandler) ListLogs(c *fiber.Ctx) error {
	logs, err := h.webhookService.ListLogs(c.Context(), c.Query("status"),
		c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return utils.InternalError(c, "Failed to list webhook logs")
	}
	return utils.Success(c, fiber.Map{"logs": logs})
}

func (h *WebhookHandler) GetLog(c *fiber.Ctx) error {
	entry, err := h.webhookService.GetLog(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrWebhookLogNotFound) {
			return utils.NotFound(c, "Webhook log not found")
		}
		return utils.InternalError(c, "Failed to get webhook log")
	}
	return utils.Success(c, fiber.Map{"log": entry})
}
