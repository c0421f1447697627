package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ledger entry types
const (
	LedgerEntryCredit = "credit"
	LedgerEntryDebit  = "debit"
)

// WalletLedgerEntry is one immutable signed balance change. Credits carry a
// positive amount, debits a negative one, so a wallet's balance is always
// SUM(amount) over its entries.
type WalletLedgerEntry struct {
	ID          string  `gorm:"primarykey" json:"id"`
	WalletID    string  `gorm:"index;not null" json:"wallet_id"`
	Amount      float64 `gorm:"not null" json:"amount"`
	Type        string  `gorm:"not null" json:"type"`
	Description string  `json:"description"`
	ChargeID    string  `gorm:"index" json:"charge_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (e *WalletLedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
