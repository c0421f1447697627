package repositories

import (
	"context"
	"errors"
	"time"

	"payflow/internal/models"
)

var (
	ErrWebhookLogNotFound = errors.New("webhook log not found")
	// ErrWebhookClaimed means another delivery worker already owns the log.
	ErrWebhookClaimed = errors.New("webhook log already claimed")
)

// WebhookLogRepository defines the interface for the durable outbound webhook
// queue. Claim/ReapExpiredLeases mirror the installment leasing discipline so
// no log entry ever has two concurrent delivery attempts.
type WebhookLogRepository interface {
	Create(ctx context.Context, log *models.WebhookLog) error
	GetByID(ctx context.Context, id string) (*models.WebhookLog, error)
	List(ctx context.Context, status string, limit, offset int) ([]models.WebhookLog, error)
	// ListDue returns pending logs whose next attempt time has passed (or was
	// never set).
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.WebhookLog, error)
	// Claim atomically moves a pending log to delivering until expires.
	Claim(ctx context.Context, id string, expires time.Time) error
	Update(ctx context.Context, log *models.WebhookLog) error
	ReapExpiredLeases(ctx context.Context, now time.Time) (int64, error)
}
