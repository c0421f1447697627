package charge

import "errors"

// Service errors
var (
	// ErrInvalidSplit is a caller error: the allocation is rejected before
	// any wallet or external call happens.
	ErrInvalidSplit = errors.New("invalid split instructions")
	// ErrKeyConflict means an existing charge carries the same idempotency
	// key with a different amount. The existing charge is never overwritten.
	ErrKeyConflict   = errors.New("idempotency key conflict")
	ErrInvalidAmount = errors.New("invalid charge amount")
)
