package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InstallmentOrder statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusActive    = "active"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"
	OrderStatusCancelled = "cancelled"
)

// Installment statuses
const (
	InstallmentStatusPending        = "pending"
	InstallmentStatusLeased         = "leased"
	InstallmentStatusProcessing     = "processing"
	InstallmentStatusSucceeded      = "succeeded"
	InstallmentStatusFailed         = "failed"
	InstallmentStatusRetryScheduled = "retry_scheduled"
	InstallmentStatusCancelled      = "cancelled"
)

// InstallmentOrder is a payment plan split into scheduled installments.
// AllowPartialFailure controls whether one terminally failed installment
// fails the whole order.
type InstallmentOrder struct {
	ID                  string  `gorm:"primarykey" json:"id"`
	CustomerID          string  `gorm:"index;not null" json:"customer_id"`
	Amount              float64 `gorm:"not null" json:"amount"`
	Currency            string  `gorm:"default:'USD'" json:"currency"`
	InstallmentCount    int     `gorm:"not null" json:"installment_count"`
	InstallmentAmount   float64 `gorm:"not null" json:"installment_amount"`
	Status              string  `gorm:"default:'pending'" json:"status"`
	AllowPartialFailure bool    `gorm:"default:false" json:"allow_partial_failure"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	Installments []Installment `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"installments,omitempty"`
}

func (o *InstallmentOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// Installment is one scheduled partial payment within an order. Lease fields
// give a worker a time-bounded exclusive claim; LeasePriorStatus is what the
// reaper restores when a lease expires without a transition.
type Installment struct {
	ID                string  `gorm:"primarykey" json:"id"`
	OrderID           string  `gorm:"index;not null" json:"order_id"`
	InstallmentNumber int     `gorm:"not null" json:"installment_number"`
	Amount            float64 `gorm:"not null" json:"amount"`
	DueAt             time.Time `gorm:"index;not null" json:"due_at"`
	Status            string    `gorm:"index;default:'pending'" json:"status"`
	AttemptCount      int       `gorm:"default:0" json:"attempt_count"`
	AttemptEpoch      int       `gorm:"default:0" json:"attempt_epoch"`
	NextAttemptAt     *time.Time `gorm:"index" json:"next_attempt_at,omitempty"`
	LeaseExpiresAt    *time.Time `json:"lease_expires_at,omitempty"`
	LeasePriorStatus  string     `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (i *Installment) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Terminal reports whether the installment can no longer change state.
func (i *Installment) Terminal() bool {
	return i.Status == InstallmentStatusSucceeded ||
		i.Status == InstallmentStatusFailed ||
		i.Status == InstallmentStatusCancelled
}
