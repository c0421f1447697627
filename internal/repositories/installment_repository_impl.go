package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow/internal/models"

	"gorm.io/gorm"
)

type installmentRepository struct {
	db *gorm.DB
}

func NewInstallmentRepository(db *gorm.DB) InstallmentRepository {
	return &installmentRepository{db: db}
}

func (r *installmentRepository) CreateOrder(ctx context.Context, order *models.InstallmentOrder) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *installmentRepository) GetOrder(ctx context.Context, id string) (*models.InstallmentOrder, error) {
	var order models.InstallmentOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (r *installmentRepository) ListOrders(ctx context.Context, customerID, status string, limit, offset int) ([]models.InstallmentOrder, error) {
	query := r.db.WithContext(ctx).Model(&models.InstallmentOrder{})
	if customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var orders []models.InstallmentOrder
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

func (r *installmentRepository) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.InstallmentOrder{}).
		Where("id = ?", orderID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update order status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *installmentRepository) CreateInstallments(ctx context.Context, installments []*models.Installment) error {
	if len(installments) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(installments).Error; err != nil {
		return fmt.Errorf("failed to create installments: %w", err)
	}
	return nil
}

func (r *installmentRepository) GetInstallment(ctx context.Context, id string) (*models.Installment, error) {
	var installment models.Installment
	if err := r.db.WithContext(ctx).First(&installment, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInstallmentNotFound
		}
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	return &installment, nil
}

func (r *installmentRepository) ListByOrder(ctx context.Context, orderID string) ([]models.Installment, error) {
	var installments []models.Installment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("installment_number ASC").
		Find(&installments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	return installments, nil
}

func (r *installmentRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Installment, error) {
	var installments []models.Installment
	// Only active orders are scheduled; pending orders hold their
	// installments until activation.
	err := r.db.WithContext(ctx).
		Joins("JOIN installment_orders ON installment_orders.id = installments.order_id").
		Where("installment_orders.status = ?", models.OrderStatusActive).
		Where("(installments.status = ? AND installments.due_at <= ?) OR (installments.status = ? AND installments.next_attempt_at <= ?)",
			models.InstallmentStatusPending, now,
			models.InstallmentStatusRetryScheduled, now).
		Order("installments.due_at ASC").
		Limit(limit).
		Find(&installments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due installments: %w", err)
	}
	return installments, nil
}

func (r *installmentRepository) Lease(ctx context.Context, id string, expires time.Time) (*models.Installment, error) {
	// The status condition is the optimistic check: only one worker's UPDATE
	// matches, everyone else sees zero rows affected.
	result := r.db.WithContext(ctx).
		Model(&models.Installment{}).
		Where("id = ? AND status IN ?", id, []string{
			models.InstallmentStatusPending,
			models.InstallmentStatusRetryScheduled,
		}).
		Updates(map[string]interface{}{
			"lease_prior_status": gorm.Expr("status"),
			"status":             models.InstallmentStatusLeased,
			"lease_expires_at":   expires,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to lease installment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrLeaseConflict
	}
	return r.GetInstallment(ctx, id)
}

func (r *installmentRepository) Update(ctx context.Context, installment *models.Installment) error {
	if err := r.db.WithContext(ctx).Save(installment).Error; err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	return nil
}

func (r *installmentRepository) ReapExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Installment{}).
		Where("status IN ? AND lease_expires_at <= ?", []string{
			models.InstallmentStatusLeased,
			models.InstallmentStatusProcessing,
		}, now).
		Updates(map[string]interface{}{
			"status":             gorm.Expr("lease_prior_status"),
			"lease_prior_status": "",
			"lease_expires_at":   nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reap expired leases: %w", result.Error)
	}
	return result.RowsAffected, nil
}
