package wallet

import "errors"

// Service errors
var (
	// ErrInsufficientFunds is recoverable for callers: the charge processor
	// uses it to fall back to the external processor.
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrWalletExists      = errors.New("wallet already exists")
	ErrWalletInactive    = errors.New("wallet is inactive")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEntryNotFound     = errors.New("ledger entry not found")
)
