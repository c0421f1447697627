package orders

import (
	"context"
	"time"

	"payflow/internal/models"
)

// Service manages installment orders: creating the payment plan, activating
// it so the scheduler picks its installments up, and read access.
type Service interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.InstallmentOrder, error)
	ActivateOrder(ctx context.Context, orderID string) (*models.InstallmentOrder, error)
	GetOrder(ctx context.Context, orderID string) (*models.InstallmentOrder, error)
	ListOrders(ctx context.Context, customerID, status string, limit, offset int) ([]models.InstallmentOrder, error)
	ListInstallments(ctx context.Context, orderID string) ([]models.Installment, error)
	GetInstallment(ctx context.Context, id string) (*models.Installment, error)
	ListDueInstallments(ctx context.Context, now time.Time, limit int) ([]models.Installment, error)
}

// CreateOrderRequest describes a new payment plan. When FirstDueAt is zero
// the first installment is due immediately.
type CreateOrderRequest struct {
	CustomerID          string    `json:"customer_id"`
	Amount              float64   `json:"amount"`
	Currency            string    `json:"currency"`
	InstallmentCount    int       `json:"installment_count"`
	AllowPartialFailure bool      `json:"allow_partial_failure"`
	FirstDueAt          time.Time `json:"first_due_at"`
}
