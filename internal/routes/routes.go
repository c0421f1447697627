// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers.
package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"payflow/internal/handlers"
	"payflow/internal/services/charge"
	"payflow/internal/services/orders"
	"payflow/internal/services/wallet"
	"payflow/internal/services/webhook"
)

// Deps carries the services the HTTP layer exposes. They are constructed in
// cmd/server so the background loops share the same instances.
type Deps struct {
	Wallets  wallet.Service
	Orders   orders.Service
	Charges  charge.Service
	Webhooks webhook.Service
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, deps Deps) {
	walletHandler := handlers.NewWalletHandler(deps.Wallets)
	orderHandler := handlers.NewOrderHandler(deps.Orders, deps.Charges)
	chargeHandler := handlers.NewChargeHandler(deps.Charges)
	webhookHandler := handlers.NewWebhookHandler(deps.Webhooks)

	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api/v1")

	wallets := api.Group("/wallets")
	wallets.Post("/", walletHandler.CreateWallet)
	wallets.Get("/", walletHandler.ListWallets)
	wallets.Get("/customer/:customerID", walletHandler.GetWallet)
	wallets.Post("/:id/credit", walletHandler.Credit)
	wallets.Get("/:id/ledger", walletHandler.Ledger)
	wallets.Post("/:id/recompute", walletHandler.RecomputeBalance)

	ordersGroup := api.Group("/orders")
	ordersGroup.Post("/", orderHandler.CreateOrder)
	ordersGroup.Get("/", orderHandler.ListOrders)
	ordersGroup.Get("/:id", orderHandler.GetOrder)
	ordersGroup.Post("/:id/activate", orderHandler.ActivateOrder)
	ordersGroup.Get("/:id/installments", orderHandler.ListInstallments)

	installments := api.Group("/installments")
	installments.Get("/due", orderHandler.ListDueInstallments)
	installments.Post("/:id/process", orderHandler.ProcessInstallment)

	charges := api.Group("/charges")
	charges.Post("/", chargeHandler.CreateCharge)
	charges.Get("/", chargeHandler.ListCharges)
	charges.Get("/:id", chargeHandler.GetCharge)

	webhooks := api.Group("/webhooks")
	webhooks.Get("/logs", webhookHandler.ListLogs)
	webhooks.Get("/logs/:id", webhookHandler.GetLog)
}
