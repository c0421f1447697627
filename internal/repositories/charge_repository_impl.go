package repositories

import (
	"context"
	"errors"
	"fmt"

	"payflow/internal/models"

	"gorm.io/gorm"
)

type chargeRepository struct {
	db *gorm.DB
}

func NewChargeRepository(db *gorm.DB) ChargeRepository {
	return &chargeRepository{db: db}
}

func (r *chargeRepository) Create(ctx context.Context, charge *models.Charge) error {
	if err := r.db.WithContext(ctx).Create(charge).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create charge: %w", err)
	}
	return nil
}

func (r *chargeRepository) GetByID(ctx context.Context, id string) (*models.Charge, error) {
	var charge models.Charge
	if err := r.db.WithContext(ctx).First(&charge, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChargeNotFound
		}
		return nil, fmt.Errorf("failed to get charge: %w", err)
	}
	return &charge, nil
}

func (r *chargeRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Charge, error) {
	var charge models.Charge
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&charge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChargeNotFound
		}
		return nil, fmt.Errorf("failed to get charge by idempotency key: %w", err)
	}
	return &charge, nil
}

func (r *chargeRepository) Update(ctx context.Context, charge *models.Charge) error {
	if err := r.db.WithContext(ctx).Save(charge).Error; err != nil {
		return fmt.Errorf("failed to update charge: %w", err)
	}
	return nil
}

func (r *chargeRepository) List(ctx context.Context, customerID, status string, limit, offset int) ([]models.Charge, error) {
	query := r.db.WithContext(ctx).Model(&models.Charge{})
	if customerID != "" {
		query = query.Where("customer_id = ?", customerID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var charges []models.Charge
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&charges).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}
	return charges, nil
}
