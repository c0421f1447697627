package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payflow/internal/models"

	"gorm.io/gorm"
)

type webhookLogRepository struct {
	db *gorm.DB
}

func NewWebhookLogRepository(db *gorm.DB) WebhookLogRepository {
	return &webhookLogRepository{db: db}
}

func (r *webhookLogRepository) Create(ctx context.Context, log *models.WebhookLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create webhook log: %w", err)
	}
	return nil
}

func (r *webhookLogRepository) GetByID(ctx context.Context, id string) (*models.WebhookLog, error) {
	var log models.WebhookLog
	if err := r.db.WithContext(ctx).First(&log, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWebhookLogNotFound
		}
		return nil, fmt.Errorf("failed to get webhook log: %w", err)
	}
	return &log, nil
}

func (r *webhookLogRepository) List(ctx context.Context, status string, limit, offset int) ([]models.WebhookLog, error) {
	query := r.db.WithContext(ctx).Model(&models.WebhookLog{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var logs []models.WebhookLog
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook logs: %w", err)
	}
	return logs, nil
}

func (r *webhookLogRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.WebhookLog, error) {
	var logs []models.WebhookLog
	err := r.db.WithContext(ctx).
		Where("status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)",
			models.WebhookStatusPending, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list due webhook logs: %w", err)
	}
	return logs, nil
}

func (r *webhookLogRepository) Claim(ctx context.Context, id string, expires time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.WebhookLog{}).
		Where("id = ? AND status = ?", id, models.WebhookStatusPending).
		Updates(map[string]interface{}{
			"status":           models.WebhookStatusDelivering,
			"lease_expires_at": expires,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to claim webhook log: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWebhookClaimed
	}
	return nil
}

func (r *webhookLogRepository) Update(ctx context.Context, log *models.WebhookLog) error {
	if err := r.db.WithContext(ctx).Save(log).Error; err != nil {
		return fmt.Errorf("failed to update webhook log: %w", err)
	}
	return nil
}

func (r *webhookLogRepository) ReapExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WebhookLog{}).
		Where("status = ? AND lease_expires_at <= ?", models.WebhookStatusDelivering, now).
		Updates(map[string]interface{}{
			"status":           models.WebhookStatusPending,
			"lease_expires_at": nil,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reap webhook leases: %w", result.Error)
	}
	return result.RowsAffected, nil
}
