package charge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"payflow/internal/models"
	"payflow/internal/repositories"
	"payflow/internal/services/processor"
	"payflow/internal/services/wallet"
	"payflow/internal/utils"

	"github.com/google/uuid"
)

type service struct {
	charges      repositories.ChargeRepository
	installments repositories.InstallmentRepository
	wallets      WalletService
	external     processor.Processor
	dispatcher   Dispatcher
	cfg          Config
	metrics      MetricsCollector
	now          func() time.Time
}

// NewService creates a new charge processor.
func NewService(
	charges repositories.ChargeRepository,
	installments repositories.InstallmentRepository,
	wallets WalletService,
	external processor.Processor,
	dispatcher Dispatcher,
	cfg Config,
	metrics MetricsCollector,
) Service {
	if charges == nil || installments == nil || wallets == nil || external == nil || dispatcher == nil {
		panic("charge service dependencies are required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultBackoffCap
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &service{
		charges:      charges,
		installments: installments,
		wallets:      wallets,
		external:     external,
		dispatcher:   dispatcher,
		cfg:          cfg,
		metrics:      metrics,
		now:          time.Now,
	}
}

// ProcessInstallment charges one leased installment. The idempotency key is
// derived from the installment and its attempt epoch, so any replay of the
// same epoch resolves to the existing charge instead of a second monetary
// effect.
func (s *service) ProcessInstallment(ctx context.Context, installment *models.Installment) (*models.Charge, error) {
	order, err := s.installments.GetOrder(ctx, installment.OrderID)
	if err != nil {
		return nil, err
	}

	key := InstallmentIdempotencyKey(installment.ID, installment.AttemptEpoch)
	chg, err := s.charges.GetByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		if chg.Amount != installment.Amount {
			return nil, fmt.Errorf("%w: charge %s has amount %.2f, installment wants %.2f",
				ErrKeyConflict, chg.ID, chg.Amount, installment.Amount)
		}
		if chg.Status == models.ChargeStatusSucceeded {
			// A prior run charged but may have crashed before advancing the
			// installment. Re-apply the terminal transition, never the charge.
			if !installment.Terminal() {
				return chg, s.finalizeInstallmentSuccess(ctx, chg, installment, order)
			}
			return chg, nil
		}
		if chg.Status == models.ChargeStatusFailed {
			return chg, nil
		}
		// Still pending: resume the attempt with the same key.
	case errors.Is(err, repositories.ErrChargeNotFound):
		chg = &models.Charge{
			CustomerID:     order.CustomerID,
			InstallmentID:  installment.ID,
			OrderID:        order.ID,
			Amount:         installment.Amount,
			Currency:       order.Currency,
			Status:         models.ChargeStatusPending,
			IdempotencyKey: key,
		}
		if createErr := s.charges.Create(ctx, chg); createErr != nil {
			if !errors.Is(createErr, repositories.ErrDuplicateIdempotencyKey) {
				return nil, createErr
			}
			// Lost the creation race: resolve to the winner's row.
			existing, getErr := s.charges.GetByIdempotencyKey(ctx, key)
			if getErr != nil {
				return nil, getErr
			}
			if existing.Amount != installment.Amount {
				return nil, ErrKeyConflict
			}
			if existing.Status != models.ChargeStatusPending {
				return existing, nil
			}
			chg = existing
		}
	default:
		return nil, err
	}

	return chg, s.attempt(ctx, chg, installment, order)
}

// CreateCharge runs an ad-hoc charge without an installment. Split
// instructions are validated before any side effect.
func (s *service) CreateCharge(ctx context.Context, req Request) (*models.Charge, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := ValidateSplit(req.SplitInstructions, req.Amount); err != nil {
		return nil, err
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.NewString()
	}

	chg, err := s.charges.GetByIdempotencyKey(ctx, key)
	switch {
	case err == nil:
		if chg.Amount != req.Amount {
			return nil, ErrKeyConflict
		}
		if chg.Status != models.ChargeStatusPending {
			return chg, nil
		}
	case errors.Is(err, repositories.ErrChargeNotFound):
		chg = &models.Charge{
			CustomerID:        req.CustomerID,
			Amount:            req.Amount,
			Currency:          req.Currency,
			Status:            models.ChargeStatusPending,
			IdempotencyKey:    key,
			SplitInstructions: req.SplitInstructions,
			Metadata:          models.NewJSON(req.Metadata),
		}
		if createErr := s.charges.Create(ctx, chg); createErr != nil {
			if !errors.Is(createErr, repositories.ErrDuplicateIdempotencyKey) {
				return nil, createErr
			}
			existing, getErr := s.charges.GetByIdempotencyKey(ctx, key)
			if getErr != nil {
				return nil, getErr
			}
			if existing.Amount != req.Amount {
				return nil, ErrKeyConflict
			}
			if existing.Status != models.ChargeStatusPending {
				return existing, nil
			}
			chg = existing
		}
	default:
		return nil, err
	}

	return chg, s.attempt(ctx, chg, nil, nil)
}

func (s *service) GetCharge(ctx context.Context, id string) (*models.Charge, error) {
	return s.charges.GetByID(ctx, id)
}

func (s *service) ListCharges(ctx context.Context, customerID, status string, limit, offset int) ([]models.Charge, error) {
	return s.charges.List(ctx, customerID, status, limit, offset)
}

// attempt runs one wallet-first/external-fallback attempt for a pending
// charge. installment and order are nil for ad-hoc charges.
func (s *service) attempt(ctx context.Context, chg *models.Charge, installment *models.Installment, order *models.InstallmentOrder) error {
	// Replay safety: if a prior run already debited the wallet for this
	// charge, finish the bookkeeping without debiting again.
	if entry, err := s.wallets.FindEntryByReference(ctx, chg.ID); err == nil && entry != nil {
		return s.finalizeSuccess(ctx, chg, installment, order, models.PaymentMethodWallet, "")
	}

	if w, err := s.wallets.GetWallet(ctx, chg.CustomerID); err == nil {
		if _, debitErr := s.wallets.Debit(ctx, w.ID, chg.Amount, chg.ID); debitErr == nil {
			return s.finalizeSuccess(ctx, chg, installment, order, models.PaymentMethodWallet, "")
		} else if !errors.Is(debitErr, wallet.ErrInsufficientFunds) {
			log.Printf("wallet debit failed for charge %s, falling back to external: %v", chg.ID, debitErr)
		}
	}

	result, err := s.external.AuthorizeAndCapture(ctx, chg.Amount, chg.Currency, chg.CustomerID, chg.IdempotencyKey)
	if err != nil || result == nil || result.Outcome == processor.OutcomePending {
		// Indeterminate: the processor may have captured. The charge stays
		// pending and the same epoch is replayed later against the same key.
		if err != nil {
			log.Printf("external processor indeterminate for charge %s: %v", chg.ID, err)
		}
		return s.deferIndeterminate(ctx, installment)
	}

	if result.Outcome == processor.OutcomeSucceeded {
		return s.finalizeSuccess(ctx, chg, installment, order, models.PaymentMethodExternal, result.ExternalID)
	}
	return s.recordFailure(ctx, chg, installment, order, result.Message)
}

func (s *service) finalizeSuccess(ctx context.Context, chg *models.Charge, installment *models.Installment, order *models.InstallmentOrder, method, externalID string) error {
	chg.Status = models.ChargeStatusSucceeded
	chg.PaymentMethod = method
	chg.ExternalChargeID = externalID
	if err := s.charges.Update(ctx, chg); err != nil {
		return err
	}
	s.metrics.RecordCharge(method, models.ChargeStatusSucceeded)

	if installment != nil {
		return s.finalizeInstallmentSuccess(ctx, chg, installment, order)
	}
	return s.dispatcher.Enqueue(ctx, models.EventChargeSucceeded, chg)
}

func (s *service) finalizeInstallmentSuccess(ctx context.Context, chg *models.Charge, installment *models.Installment, order *models.InstallmentOrder) error {
	installment.Status = models.InstallmentStatusSucceeded
	clearLease(installment)
	if err := s.installments.Update(ctx, installment); err != nil {
		return err
	}
	if err := s.rollupOrder(ctx, order); err != nil {
		log.Printf("failed to roll up order %s: %v", order.ID, err)
	}
	return s.dispatcher.Enqueue(ctx, models.EventChargeSucceeded, chg)
}

// recordFailure marks the charge failed and consumes one retry attempt. The
// failed charge stays as immutable history; a later retry mints a new epoch
// and therefore a new charge.
func (s *service) recordFailure(ctx context.Context, chg *models.Charge, installment *models.Installment, order *models.InstallmentOrder, message string) error {
	chg.Status = models.ChargeStatusFailed
	if message != "" {
		if chg.Metadata == nil {
			chg.Metadata = models.JSON{}
		}
		chg.Metadata["failure_message"] = message
	}
	if err := s.charges.Update(ctx, chg); err != nil {
		return err
	}
	s.metrics.RecordCharge(models.PaymentMethodExternal, models.ChargeStatusFailed)

	if installment == nil {
		// Ad-hoc charges have no retry budget.
		return s.dispatcher.Enqueue(ctx, models.EventChargeFailed, chg)
	}

	installment.AttemptCount++
	if installment.AttemptCount >= s.cfg.MaxAttempts {
		installment.Status = models.InstallmentStatusFailed
		installment.NextAttemptAt = nil
		clearLease(installment)
		if err := s.installments.Update(ctx, installment); err != nil {
			return err
		}
		if err := s.applyOrderFailurePolicy(ctx, order); err != nil {
			log.Printf("failed to apply failure policy for order %s: %v", order.ID, err)
		}
		// Exactly one terminal failure event per installment.
		return s.dispatcher.Enqueue(ctx, models.EventChargeFailed, chg)
	}

	installment.Status = models.InstallmentStatusRetryScheduled
	installment.AttemptEpoch++
	next := s.now().Add(utils.ExponentialBackoff(s.cfg.BackoffBase, s.cfg.BackoffCap, installment.AttemptCount))
	installment.NextAttemptAt = &next
	clearLease(installment)
	return s.installments.Update(ctx, installment)
}

// deferIndeterminate reschedules an installment after an indeterminate
// external call. The epoch and attempt count are untouched: the next run
// replays the same idempotency key and lets the processor deduplicate.
func (s *service) deferIndeterminate(ctx context.Context, installment *models.Installment) error {
	if installment == nil {
		return nil
	}
	installment.Status = models.InstallmentStatusRetryScheduled
	next := s.now().Add(s.cfg.BackoffBase)
	installment.NextAttemptAt = &next
	clearLease(installment)
	return s.installments.Update(ctx, installment)
}

func (s *service) rollupOrder(ctx context.Context, order *models.InstallmentOrder) error {
	installments, err := s.installments.ListByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	for _, installment := range installments {
		if installment.Status != models.InstallmentStatusSucceeded {
			return nil
		}
	}
	return s.installments.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCompleted)
}

// applyOrderFailurePolicy runs after an installment terminally fails. Without
// the grace policy the whole order fails and its remaining installments are
// cancelled; with it the order completes once everything is terminal.
func (s *service) applyOrderFailurePolicy(ctx context.Context, order *models.InstallmentOrder) error {
	installments, err := s.installments.ListByOrder(ctx, order.ID)
	if err != nil {
		return err
	}

	if !order.AllowPartialFailure {
		for i := range installments {
			installment := &installments[i]
			if installment.Terminal() {
				continue
			}
			installment.Status = models.InstallmentStatusCancelled
			installment.NextAttemptAt = nil
			clearLease(installment)
			if err := s.installments.Update(ctx, installment); err != nil {
				return err
			}
		}
		return s.installments.UpdateOrderStatus(ctx, order.ID, models.OrderStatusFailed)
	}

	for _, installment := range installments {
		if !installment.Terminal() {
			return nil
		}
	}
	return s.installments.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCompleted)
}

func clearLease(installment *models.Installment) {
	installment.LeaseExpiresAt = nil
	installment.LeasePriorStatus = ""
}
