package webhook

import (
	"context"

	"payflow/internal/models"
)

// Service records charge-outcome events durably and delivers them to every
// configured target with retry and backoff.
type Service interface {
	Enqueue(ctx context.Context, eventType string, charge *models.Charge) error
	ListLogs(ctx context.Context, status string, limit, offset int) ([]models.WebhookLog, error)
	GetLog(ctx context.Context, id string) (*models.WebhookLog, error)
}

// MetricsCollector defines the interface for collecting delivery metrics.
type MetricsCollector interface {
	RecordDelivery(eventType, outcome string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordDelivery(string, string) {}
