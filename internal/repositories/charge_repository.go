package repositories

import (
	"context"
	"errors"

	"payflow/internal/models"
)

var (
	ErrChargeNotFound = errors.New("charge not found")
	// ErrDuplicateIdempotencyKey means a charge with the same key already
	// exists; the caller must resolve to the existing row instead of charging
	// again.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// ChargeRepository defines the interface for charge persistence. The unique
// index on idempotency_key backs the at-most-once guarantee.
type ChargeRepository interface {
	Create(ctx context.Context, charge *models.Charge) error
	GetByID(ctx context.Context, id string) (*models.Charge, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Charge, error)
	Update(ctx context.Context, charge *models.Charge) error
	List(ctx context.Context, customerID, status string, limit, offset int) ([]models.Charge, error)
}
