package charge

import (
	"time"

	"payflow/internal/models"
)

// Default retry configuration
const (
	DefaultMaxAttempts = 5
	DefaultBackoffBase = time.Minute
	DefaultBackoffCap  = 6 * time.Hour
)

// Config holds retry policy settings for installment charges.
type Config struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// Request describes an ad-hoc charge not tied to an installment.
type Request struct {
	CustomerID        string                   `json:"customer_id"`
	Amount            float64                  `json:"amount"`
	Currency          string                   `json:"currency"`
	SplitInstructions models.SplitInstructions `json:"split_instructions"`
	Metadata          map[string]interface{}   `json:"metadata"`
	IdempotencyKey    string                   `json:"idempotency_key"`
}
