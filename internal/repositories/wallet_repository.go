package repositories

import (
	"context"
	"errors"

	"payflow/internal/models"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrDuplicateWallet     = errors.New("wallet already exists")
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")
)

// WalletRepository defines the interface for wallet and ledger persistence.
// Debit/credit callers are expected to run the locked read, the ledger append
// and the balance update inside ExecuteInTransaction so the cached balance
// never drifts from the entry sum.
type WalletRepository interface {
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id string) (*models.Wallet, error)
	GetByCustomerID(ctx context.Context, customerID string) (*models.Wallet, error)
	// GetByIDForUpdate locks the wallet row for the current transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*models.Wallet, error)
	UpdateBalance(ctx context.Context, walletID string, balance float64) error
	List(ctx context.Context, limit, offset int) ([]models.Wallet, error)

	CreateLedgerEntry(ctx context.Context, entry *models.WalletLedgerEntry) error
	// GetLedgerEntryByChargeID finds the entry a charge already caused, if
	// any. Used to make crash recovery replay-safe.
	GetLedgerEntryByChargeID(ctx context.Context, chargeID string) (*models.WalletLedgerEntry, error)
	SumLedgerEntries(ctx context.Context, walletID string) (float64, error)
	ListLedgerEntries(ctx context.Context, walletID string, limit, offset int) ([]models.WalletLedgerEntry, error)

	ExecuteInTransaction(fn func(WalletRepository) error) error
}
