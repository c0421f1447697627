package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/paymentintent"
)

type stripeProcessor struct{}

// NewStripeProcessor returns a Processor backed by Stripe PaymentIntents.
// The Stripe API key must be set via stripe.Key before use.
func NewStripeProcessor(apiKey string) Processor {
	if apiKey != "" {
		stripe.Key = apiKey
	}
	return &stripeProcessor{}
}

func (p *stripeProcessor) AuthorizeAndCapture(ctx context.Context, amount float64, currency, customerID, idempotencyKey string) (*Result, error) {
	params := &stripe.PaymentIntentParams{
		Amount:     stripe.Int64(int64(amount * 100)),
		Currency:   stripe.String(strings.ToLower(currency)),
		Customer:   stripe.String(customerID),
		Confirm:    stripe.Bool(true),
		OffSession: stripe.Bool(true),
	}
	params.Context = ctx
	// Stripe deduplicates on this key, which is what makes replays after a
	// timeout safe.
	params.SetIdempotencyKey(idempotencyKey)

	pi, err := paymentintent.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			if stripeErr.Type == stripe.ErrorTypeCard {
				// Definite decline from the card network.
				return &Result{Outcome: OutcomeFailed, Message: stripeErr.Msg}, nil
			}
			if stripeErr.HTTPStatusCode >= 400 && stripeErr.HTTPStatusCode < 500 {
				return &Result{Outcome: OutcomeFailed, Message: stripeErr.Msg}, nil
			}
		}
		// Timeouts and 5xx responses are indeterminate: the charge may have
		// gone through on Stripe's side.
		return &Result{Outcome: OutcomePending, Message: err.Error()},
			fmt.Errorf("stripe call indeterminate: %w", err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return &Result{Outcome: OutcomeSucceeded, ExternalID: pi.ID}, nil
	case stripe.PaymentIntentStatusProcessing:
		return &Result{Outcome: OutcomePending, ExternalID: pi.ID}, nil
	default:
		return &Result{
			Outcome:    OutcomeFailed,
			ExternalID: pi.ID,
			Message:    fmt.Sprintf("unexpected payment intent status %s", pi.Status),
		}, nil
	}
}
