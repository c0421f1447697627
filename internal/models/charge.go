package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Charge statuses
const (
	ChargeStatusPending   = "pending"
	ChargeStatusSucceeded = "succeeded"
	ChargeStatusFailed    = "failed"
)

// Payment methods
const (
	PaymentMethodWallet   = "wallet"
	PaymentMethodExternal = "external"
)

// SplitInstruction allocates part of a charge's amount to one recipient.
type SplitInstruction struct {
	Recipient string  `json:"recipient"`
	Amount    float64 `json:"amount"`
}

// SplitInstructions is the ordered allocation of a charge across recipients,
// stored as a JSON column.
type SplitInstructions []SplitInstruction

func (s SplitInstructions) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

func (s *SplitInstructions) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("split instructions: unsupported scan type")
	}
	return json.Unmarshal(bytes, s)
}

// Charge is one monetary outcome. The unique idempotency key is the
// at-most-once guarantee: a replayed attempt with the same key resolves to
// this row instead of creating a second effect.
type Charge struct {
	ID                string            `gorm:"primarykey" json:"id"`
	CustomerID        string            `gorm:"index;not null" json:"customer_id"`
	InstallmentID     string            `gorm:"index" json:"installment_id,omitempty"`
	OrderID           string            `gorm:"index" json:"order_id,omitempty"`
	Amount            float64           `gorm:"not null" json:"amount"`
	Currency          string            `gorm:"default:'USD'" json:"currency"`
	Status            string            `gorm:"default:'pending'" json:"status"`
	PaymentMethod     string            `json:"payment_method,omitempty"`
	IdempotencyKey    string            `gorm:"uniqueIndex;not null" json:"idempotency_key"`
	ExternalChargeID  string            `json:"external_charge_id,omitempty"`
	SplitInstructions SplitInstructions `gorm:"type:jsonb" json:"split_instructions,omitempty"`
	Metadata          JSON              `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (c *Charge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
