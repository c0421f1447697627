package wallet

import (
	"context"

	"payflow/internal/models"
)

// Service defines the main wallet service interface. Credit and Debit only
// succeed by writing a ledger entry and updating the cached balance in one
// atomic unit; Balance may be recomputed from the ledger as the recovery path.
type Service interface {
	CreateWallet(ctx context.Context, customerID, currency string) (*models.Wallet, error)
	GetWallet(ctx context.Context, customerID string) (*models.Wallet, error)
	ListWallets(ctx context.Context, limit, offset int) ([]models.Wallet, error)

	Credit(ctx context.Context, walletID string, amount float64, reference string) (*models.WalletLedgerEntry, error)
	Debit(ctx context.Context, walletID string, amount float64, reference string) (*models.WalletLedgerEntry, error)

	Balance(ctx context.Context, walletID string) (float64, error)
	RecomputeBalance(ctx context.Context, walletID string) (float64, error)
	Ledger(ctx context.Context, walletID string, limit, offset int) ([]models.WalletLedgerEntry, error)

	// FindEntryByReference reports whether a charge already produced a ledger
	// entry, so a recovering worker never debits twice for the same charge.
	FindEntryByReference(ctx context.Context, chargeID string) (*models.WalletLedgerEntry, error)
}

// CacheOperator defines the caching operations used for wallet reads.
type CacheOperator interface {
	GetWallet(ctx context.Context, customerID string) (*models.Wallet, error)
	SetWallet(ctx context.Context, wallet *models.Wallet) error
	InvalidateWallet(ctx context.Context, customerID string) error
}

// MetricsCollector defines the interface for collecting wallet metrics.
type MetricsCollector interface {
	RecordWalletOperation(operation, result string)
	RecordBalanceChange(walletID string, oldBalance, newBalance float64)
}
