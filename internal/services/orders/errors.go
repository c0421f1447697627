package orders

import "errors"

var (
	ErrOrderNotFound       = errors.New("installment order not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrInvalidAmount       = errors.New("order amount must be positive")
	ErrInvalidCount        = errors.New("installment count must be positive")
	// ErrNotActivatable means the order is not in a state that can become active.
	ErrNotActivatable = errors.New("order cannot be activated")
)
