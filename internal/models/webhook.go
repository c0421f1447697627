package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Webhook event types
const (
	EventChargeSucceeded = "charge.succeeded"
	EventChargeFailed    = "charge.failed"
)

// WebhookLog delivery statuses
const (
	WebhookStatusPending    = "pending"
	WebhookStatusDelivering = "delivering"
	WebhookStatusDelivered  = "delivered"
	WebhookStatusExhausted  = "exhausted"
)

// WebhookLog is one durable outbound notification. It is written before any
// delivery attempt so an unreachable endpoint never loses an event; the
// delivery loop retries with backoff until delivered or exhausted.
type WebhookLog struct {
	ID             string `gorm:"primarykey" json:"id"`
	EventType      string `gorm:"index;not null" json:"event_type"`
	Payload        JSON   `gorm:"type:jsonb;not null" json:"payload"`
	TargetURL      string `gorm:"not null" json:"target_url"`
	Status         string `gorm:"index;default:'pending'" json:"status"`
	AttemptCount   int    `gorm:"default:0" json:"attempt_count"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	NextAttemptAt  *time.Time `gorm:"index" json:"next_attempt_at,omitempty"`
	LeaseExpiresAt *time.Time `json:"lease_expires_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (l *WebhookLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
