// Package webhook implements the outbound event dispatcher. Events are
// written to a durable log before any network attempt, then a delivery loop
// claims pending rows and posts them to subscriber endpoints, backing off
// exponentially on failure until the attempt budget runs out.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"payflow/internal/models"
	"payflow/internal/repositories"
	"payflow/internal/utils"
)

type Dispatcher struct {
	repo    repositories.WebhookLogRepository
	cfg     Config
	client  *http.Client
	metrics MetricsCollector
	now     func() time.Time
}

// NewDispatcher creates a webhook dispatcher backed by the given log repository.
func NewDispatcher(repo repositories.WebhookLogRepository, cfg Config, metrics MetricsCollector) *Dispatcher {
	if repo == nil {
		panic("webhook log repository is required")
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	cfg.applyDefaults()
	return &Dispatcher{
		repo:    repo,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		metrics: metrics,
		now:     time.Now,
	}
}

// Enqueue writes one pending log row per configured target. It never makes a
// network call, so recording an outcome cannot fail on a dead subscriber.
func (s *Dispatcher) Enqueue(ctx context.Context, eventType string, charge *models.Charge) error {
	payload := buildPayload(eventType, charge)
	for _, target := range s.cfg.Targets {
		entry := &models.WebhookLog{
			EventType: eventType,
			Payload:   payload,
			TargetURL: target,
			Status:    models.WebhookStatusPending,
		}
		if err := s.repo.Create(ctx, entry); err != nil {
			return fmt.Errorf("failed to enqueue %s event: %w", eventType, err)
		}
	}
	return nil
}

func (s *Dispatcher) ListLogs(ctx context.Context, status string, limit, offset int) ([]models.WebhookLog, error) {
	return s.repo.List(ctx, status, limit, offset)
}

func (s *Dispatcher) GetLog(ctx context.Context, id string) (*models.WebhookLog, error) {
	return s.repo.GetByID(ctx, id)
}

// buildPayload flattens the charge into the wire shape subscribers receive.
func buildPayload(eventType string, charge *models.Charge) models.JSON {
	payload := map[string]interface{}{
		"event_type":     eventType,
		"charge_id":      charge.ID,
		"customer_id":    charge.CustomerID,
		"amount":         charge.Amount,
		"currency":       charge.Currency,
		"status":         charge.Status,
		"payment_method": charge.PaymentMethod,
		"created_at":     charge.CreatedAt.UTC().Format(time.RFC3339),
	}
	if charge.ExternalChargeID != "" {
		payload["external_charge_id"] = charge.ExternalChargeID
	}
	if len(charge.SplitInstructions) > 0 {
		payload["split_instructions"] = charge.SplitInstructions
	}
	metadata := map[string]interface{}{}
	if charge.InstallmentID != "" {
		metadata["installment_id"] = charge.InstallmentID
	}
	if charge.OrderID != "" {
		metadata["order_id"] = charge.OrderID
	}
	for k, v := range charge.Metadata {
		metadata[k] = v
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}
	return models.NewJSON(payload)
}

// Run blocks until ctx is cancelled, delivering due log entries every poll
// interval. Expired delivery leases are returned to pending first.
func (s *Dispatcher) Run(ctx context.Context) {
	log.Printf("webhook dispatcher started (%d targets, poll=%s)", len(s.cfg.Targets), s.cfg.PollInterval)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("webhook dispatcher stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			if reaped, err := s.repo.ReapExpiredLeases(ctx, s.now()); err != nil {
				log.Printf("webhook lease reaper failed: %v", err)
			} else if reaped > 0 {
				log.Printf("webhook reaper returned %d stuck deliveries", reaped)
			}
			if _, err := s.RunOnce(ctx); err != nil {
				log.Printf("webhook delivery scan failed: %v", err)
			}
		}
	}
}

// RunOnce claims and delivers one batch of due log entries, returning how
// many were delivered.
func (s *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	due, err := s.repo.ListDue(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for i := range due {
		entry := due[i]
		if err := s.repo.Claim(ctx, entry.ID, s.now().Add(s.cfg.LeaseDuration)); err != nil {
			// Lost the race to another dispatcher.
			continue
		}
		if s.deliver(ctx, &entry) {
			delivered++
		}
	}
	return delivered, nil
}

func (s *Dispatcher) deliver(ctx context.Context, entry *models.WebhookLog) bool {
	attemptedAt := s.now()
	entry.AttemptCount++
	entry.LastAttemptAt = &attemptedAt
	entry.LeaseExpiresAt = nil

	err := s.post(ctx, entry)
	if err == nil {
		entry.Status = models.WebhookStatusDelivered
		entry.NextAttemptAt = nil
		entry.LastError = ""
		s.metrics.RecordDelivery(entry.EventType, "delivered")
		if updateErr := s.repo.Update(ctx, entry); updateErr != nil {
			log.Printf("failed to mark webhook %s delivered: %v", entry.ID, updateErr)
		}
		return true
	}

	entry.LastError = err.Error()
	if entry.AttemptCount >= s.cfg.MaxAttempts {
		entry.Status = models.WebhookStatusExhausted
		entry.NextAttemptAt = nil
		s.metrics.RecordDelivery(entry.EventType, "exhausted")
		log.Printf("webhook %s to %s exhausted after %d attempts: %v", entry.ID, entry.TargetURL, entry.AttemptCount, err)
	} else {
		next := attemptedAt.Add(utils.ExponentialBackoff(s.cfg.BackoffBase, s.cfg.BackoffCap, entry.AttemptCount))
		entry.Status = models.WebhookStatusPending
		entry.NextAttemptAt = &next
		s.metrics.RecordDelivery(entry.EventType, "retry")
		log.Printf("webhook %s to %s failed (attempt %d), retrying at %s: %v", entry.ID, entry.TargetURL, entry.AttemptCount, next.Format(time.RFC3339), err)
	}
	if updateErr := s.repo.Update(ctx, entry); updateErr != nil {
		log.Printf("failed to record webhook %s attempt: %v", entry.ID, updateErr)
	}
	return false
}

func (s *Dispatcher) post(ctx context.Context, entry *models.WebhookLog) error {
	body, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, entry.TargetURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", entry.EventType)
	req.Header.Set("X-Webhook-ID", entry.ID)
	if s.cfg.SigningSecret != "" {
		token, err := s.signToken(entry)
		if err != nil {
			return fmt.Errorf("failed to sign request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return nil
}

func (s *Dispatcher) signToken(entry *models.WebhookLog) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":        "payflow",
		"sub":        entry.ID,
		"event_type": entry.EventType,
		"iat":        now.Unix(),
		"exp":        now.Add(5 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.SigningSecret))
}
