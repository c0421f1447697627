package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet statuses
const (
	WalletStatusActive   = "active"
	WalletStatusInactive = "inactive"
)

// Wallet holds a customer's prepaid balance. The balance column is a cached
// projection of the wallet's ledger entries; the ledger is the source of truth.
type Wallet struct {
	ID         string    `gorm:"primarykey" json:"id"`
	CustomerID string    `gorm:"uniqueIndex;not null" json:"customer_id"`
	Balance    float64   `gorm:"default:0" json:"balance"`
	Currency   string    `gorm:"default:'USD'" json:"currency"`
	Status     string    `gorm:"default:'active'" json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	return nil
}
