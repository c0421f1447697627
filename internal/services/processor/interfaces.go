package processor

import "context"

// Outcome is the result of an authorize-and-capture call.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	// OutcomePending means the processor has not reached a definite state.
	// Callers must treat it as indeterminate and resolve it only by replaying
	// the same idempotency key, never by assuming success or failure.
	OutcomePending Outcome = "pending"
)

// Result carries the processor's answer for one idempotency key.
type Result struct {
	Outcome    Outcome
	ExternalID string
	Message    string
}

// Processor is the external payment capability. Implementations must
// deduplicate on the idempotency key so the call is safe to repeat.
type Processor interface {
	AuthorizeAndCapture(ctx context.Context, amount float64, currency, customerID, idempotencyKey string) (*Result, error)
}
