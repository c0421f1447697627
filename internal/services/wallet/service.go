package wallet

import (
	"context"
	"errors"
	"fmt"

	"payflow/internal/models"
	"payflow/internal/repositories"
)

type service struct {
	repo    repositories.WalletRepository
	cache   CacheOperator
	metrics MetricsCollector
}

// NewService creates a new wallet service. Cache and metrics are optional.
func NewService(repo repositories.WalletRepository, cache CacheOperator, metrics MetricsCollector) Service {
	if repo == nil {
		panic("repo is required")
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &service{
		repo:    repo,
		cache:   cache,
		metrics: metrics,
	}
}

func (s *service) CreateWallet(ctx context.Context, customerID, currency string) (*models.Wallet, error) {
	if currency == "" {
		currency = "USD"
	}
	wallet := &models.Wallet{
		CustomerID: customerID,
		Currency:   currency,
		Status:     models.WalletStatusActive,
	}
	if err := s.repo.Create(ctx, wallet); err != nil {
		if errors.Is(err, repositories.ErrDuplicateWallet) {
			return nil, ErrWalletExists
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	s.setCache(ctx, wallet)
	return wallet, nil
}

func (s *service) GetWallet(ctx context.Context, customerID string) (*models.Wallet, error) {
	if s.cache != nil {
		if wallet, err := s.cache.GetWallet(ctx, customerID); err == nil {
			return wallet, nil
		}
	}

	wallet, err := s.repo.GetByCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	s.setCache(ctx, wallet)
	return wallet, nil
}

func (s *service) ListWallets(ctx context.Context, limit, offset int) ([]models.Wallet, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *service) Credit(ctx context.Context, walletID string, amount float64, reference string) (*models.WalletLedgerEntry, error) {
	if amount <= 0 {
		s.metrics.RecordWalletOperation("credit", "invalid_amount")
		return nil, ErrInvalidAmount
	}

	var entry *models.WalletLedgerEntry
	var customerID string
	var oldBalance float64

	err := s.repo.ExecuteInTransaction(func(tx repositories.WalletRepository) error {
		wallet, err := tx.GetByIDForUpdate(ctx, walletID)
		if err != nil {
			if errors.Is(err, repositories.ErrWalletNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		customerID = wallet.CustomerID
		oldBalance = wallet.Balance

		entry = &models.WalletLedgerEntry{
			WalletID:    wallet.ID,
			Amount:      amount,
			Type:        models.LedgerEntryCredit,
			ChargeID:    reference,
			Description: "wallet credit",
		}
		if err := tx.CreateLedgerEntry(ctx, entry); err != nil {
			return err
		}
		return tx.UpdateBalance(ctx, wallet.ID, wallet.Balance+amount)
	})
	if err != nil {
		s.metrics.RecordWalletOperation("credit", "error")
		return nil, err
	}

	s.invalidateCache(ctx, customerID)
	s.metrics.RecordWalletOperation("credit", "ok")
	s.metrics.RecordBalanceChange(walletID, oldBalance, oldBalance+amount)
	return entry, nil
}

func (s *service) Debit(ctx context.Context, walletID string, amount float64, reference string) (*models.WalletLedgerEntry, error) {
	if amount <= 0 {
		s.metrics.RecordWalletOperation("debit", "invalid_amount")
		return nil, ErrInvalidAmount
	}

	var entry *models.WalletLedgerEntry
	var customerID string
	var oldBalance float64

	err := s.repo.ExecuteInTransaction(func(tx repositories.WalletRepository) error {
		wallet, err := tx.GetByIDForUpdate(ctx, walletID)
		if err != nil {
			if errors.Is(err, repositories.ErrWalletNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		if wallet.Status != models.WalletStatusActive {
			return ErrWalletInactive
		}
		// Checked under the row lock so concurrent debits cannot overdraw.
		if wallet.Balance < amount {
			return ErrInsufficientFunds
		}
		customerID = wallet.CustomerID
		oldBalance = wallet.Balance

		entry = &models.WalletLedgerEntry{
			WalletID:    wallet.ID,
			Amount:      -amount,
			Type:        models.LedgerEntryDebit,
			ChargeID:    reference,
			Description: "wallet debit",
		}
		if err := tx.CreateLedgerEntry(ctx, entry); err != nil {
			return err
		}
		return tx.UpdateBalance(ctx, wallet.ID, wallet.Balance-amount)
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			s.metrics.RecordWalletOperation("debit", "insufficient_funds")
		} else {
			s.metrics.RecordWalletOperation("debit", "error")
		}
		return nil, err
	}

	s.invalidateCache(ctx, customerID)
	s.metrics.RecordWalletOperation("debit", "ok")
	s.metrics.RecordBalanceChange(walletID, oldBalance, oldBalance-amount)
	return entry, nil
}

func (s *service) Balance(ctx context.Context, walletID string) (float64, error) {
	wallet, err := s.repo.GetByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return 0, ErrWalletNotFound
		}
		return 0, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet.Balance, nil
}

// RecomputeBalance rebuilds the cached balance from the ledger. It is the
// recovery path when the projection is suspected stale.
func (s *service) RecomputeBalance(ctx context.Context, walletID string) (float64, error) {
	var total float64
	var customerID string

	err := s.repo.ExecuteInTransaction(func(tx repositories.WalletRepository) error {
		wallet, err := tx.GetByIDForUpdate(ctx, walletID)
		if err != nil {
			if errors.Is(err, repositories.ErrWalletNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		customerID = wallet.CustomerID

		total, err = tx.SumLedgerEntries(ctx, walletID)
		if err != nil {
			return err
		}
		if total == wallet.Balance {
			return nil
		}
		return tx.UpdateBalance(ctx, walletID, total)
	})
	if err != nil {
		return 0, err
	}

	s.invalidateCache(ctx, customerID)
	return total, nil
}

func (s *service) Ledger(ctx context.Context, walletID string, limit, offset int) ([]models.WalletLedgerEntry, error) {
	return s.repo.ListLedgerEntries(ctx, walletID, limit, offset)
}

func (s *service) FindEntryByReference(ctx context.Context, chargeID string) (*models.WalletLedgerEntry, error) {
	entry, err := s.repo.GetLedgerEntryByChargeID(ctx, chargeID)
	if err != nil {
		if errors.Is(err, repositories.ErrLedgerEntryNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (s *service) setCache(ctx context.Context, wallet *models.Wallet) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetWallet(ctx, wallet); err != nil {
		// Cache failures never fail the operation.
		return
	}
}

func (s *service) invalidateCache(ctx context.Context, customerID string) {
	if s.cache == nil || customerID == "" {
		return
	}
	_ = s.cache.InvalidateWallet(ctx, customerID)
}
