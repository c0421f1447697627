package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"payflow/internal/services/wallet"
	"payflow/internal/utils"
)

type WalletHandler struct {
	walletService wallet.Service
}

func NewWalletHandler(walletService wallet.Service) *WalletHandler {
	return &WalletHandler{walletService: walletService}
}

func (h *WalletHandler) CreateWallet(c *fiber.Ctx) error {
	var input struct {
		CustomerID string `json:"customer_id"`
		Currency   string `json:"currency"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if input.CustomerID == "" {
		return utils.BadRequest(c, "customer_id is required")
	}

	created, err := h.walletService.CreateWallet(c.Context(), input.CustomerID, input.Currency)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletExists) {
			return utils.Conflict(c, "Wallet already exists for customer")
		}
		return utils.InternalError(c, "Failed to create wallet")
	}
	return utils.Created(c, fiber.Map{"wallet": created})
}

func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	found, err := h.walletService.GetWallet(c.Context(), c.Params("customerID"))
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return utils.NotFound(c, "Wallet not found")
		}
		return utils.InternalError(c, "Failed to get wallet")
	}
	return utils.Success(c, fiber.Map{"wallet": found})
}

func (h *WalletHandler) ListWallets(c *fiber.Ctx) error {
	wallets, err := h.walletService.ListWallets(c.Context(), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		return utils.InternalError(c, "Failed to list wallets")
	}
	return utils.Success(c, fiber.Map{"wallets": wallets})
}

func (h *WalletHandler) Credit(c *fiber.Ctx) error {
	var input struct {
		Amount    float64 `json:"amount"`
		Reference string  `json:"reference"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	entry, err := h.walletService.Credit(c.Context(), c.Params("id"), input.Amount, input.Reference)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrWalletNotFound):
			return utils.NotFound(c, "Wallet not found")
		case errors.Is(err, wallet.ErrInvalidAmount):
			return utils.BadRequest(c, "Amount must be greater than 0")
		case errors.Is(err, wallet.ErrWalletInactive):
			return utils.BadRequest(c, "Wallet is not active")
		}
		return utils.InternalError(c, "Failed to credit wallet")
	}
	return utils.Success(c, fiber.Map{"entry": entry})
}

func (h *WalletHandler) Ledger(c *fiber.Ctx) error {
	entries, err := h.walletService.Ledger(c.Context(), c.Params("id"), c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return utils.NotFound(c, "Wallet not found")
		}
		return utils.InternalError(c, "Failed to list ledger entries")
	}
	return utils.Success(c, fiber.Map{"entries": entries})
}

// RecomputeBalance resums the ledger and repairs the cached balance.
func (h *WalletHandler) RecomputeBalance(c *fiber.Ctx) error {
	balance, err := h.walletService.RecomputeBalance(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return utils.NotFound(c, "Wallet not found")
		}
		return utils.InternalError(c, "Failed to recompute balance")
	}
	return utils.Success(c, fiber.Map{"balance": balance})
}
