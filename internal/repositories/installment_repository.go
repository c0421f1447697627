package repositories

import (
	"context"
	"errors"
	"time"

	"payflow/internal/models"
)

var (
	ErrOrderNotFound       = errors.New("installment order not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	// ErrLeaseConflict means another worker holds the installment; the losing
	// worker just skips it.
	ErrLeaseConflict = errors.New("installment already leased")
)

// InstallmentRepository defines the interface for order and installment
// persistence, including the conditional lease transitions that keep any one
// installment on a single worker at a time.
type InstallmentRepository interface {
	CreateOrder(ctx context.Context, order *models.InstallmentOrder) error
	GetOrder(ctx context.Context, id string) (*models.InstallmentOrder, error)
	ListOrders(ctx context.Context, customerID, status string, limit, offset int) ([]models.InstallmentOrder, error)
	UpdateOrderStatus(ctx context.Context, orderID, status string) error

	CreateInstallments(ctx context.Context, installments []*models.Installment) error
	GetInstallment(ctx context.Context, id string) (*models.Installment, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.Installment, error)
	// ListDue returns installments of active orders whose status is pending or
	// retry_scheduled and whose due/next-attempt time has passed.
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Installment, error)
	// Lease atomically claims an installment until expires, conditioned on the
	// row still being leasable. Returns ErrLeaseConflict if another worker won.
	Lease(ctx context.Context, id string, expires time.Time) (*models.Installment, error)
	Update(ctx context.Context, installment *models.Installment) error
	// ReapExpiredLeases resets leased rows whose lease expired back to their
	// pre-lease status, making them eligible for scheduling again.
	ReapExpiredLeases(ctx context.Context, now time.Time) (int64, error)
}
