package charge

import (
	"context"

	"payflow/internal/models"
)

// Service is the charge processor: it produces exactly one monetary outcome
// per (installment, attempt epoch) pair, wallet first with external fallback.
type Service interface {
	ProcessInstallment(ctx context.Context, installment *models.Installment) (*models.Charge, error)
	CreateCharge(ctx context.Context, req Request) (*models.Charge, error)
	GetCharge(ctx context.Context, id string) (*models.Charge, error)
	ListCharges(ctx context.Context, customerID, status string, limit, offset int) ([]models.Charge, error)
}

// WalletService is the slice of the wallet service the processor needs.
type WalletService interface {
	GetWallet(ctx context.Context, customerID string) (*models.Wallet, error)
	Debit(ctx context.Context, walletID string, amount float64, reference string) (*models.WalletLedgerEntry, error)
	FindEntryByReference(ctx context.Context, chargeID string) (*models.WalletLedgerEntry, error)
}

// Dispatcher enqueues charge-outcome events for delivery.
type Dispatcher interface {
	Enqueue(ctx context.Context, eventType string, charge *models.Charge) error
}

// MetricsCollector defines the interface for collecting charge metrics.
type MetricsCollector interface {
	RecordCharge(method, status string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordCharge(string, string) {}
