package charge

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflow/internal/models"
	"payflow/internal/repositories"
	"payflow/internal/services/processor"
	"payflow/internal/services/wallet"
)

type fakeChargeRepo struct {
	byID  map[string]*models.Charge
	byKey map[string]*models.Charge
	seq   int
}

func newFakeChargeRepo() *fakeChargeRepo {
	return &fakeChargeRepo{
		byID:  map[string]*models.Charge{},
		byKey: map[string]*models.Charge{},
	}
}

func (r *fakeChargeRepo) Create(_ context.Context, c *models.Charge) error {
	if _, exists := r.byKey[c.IdempotencyKey]; exists {
		return repositories.ErrDuplicateIdempotencyKey
	}
	if c.ID == "" {
		r.seq++
		c.ID = fmt.Sprintf("charge-%d", r.seq)
	}
	clone := *c
	r.byID[c.ID] = &clone
	r.byKey[c.IdempotencyKey] = &clone
	return nil
}

func (r *fakeChargeRepo) GetByID(_ context.Context, id string) (*models.Charge, error) {
	if c, ok := r.byID[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, repositories.ErrChargeNotFound
}

func (r *fakeChargeRepo) GetByIdempotencyKey(_ context.Context, key string) (*models.Charge, error) {
	if c, ok := r.byKey[key]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, repositories.ErrChargeNotFound
}

func (r *fakeChargeRepo) Update(_ context.Context, c *models.Charge) error {
	clone := *c
	r.byID[c.ID] = &clone
	r.byKey[c.IdempotencyKey] = &clone
	return nil
}

func (r *fakeChargeRepo) List(_ context.Context, customerID, status string, limit, offset int) ([]models.Charge, error) {
	var out []models.Charge
	for _, c := range r.byID {
		if customerID != "" && c.CustomerID != customerID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

type fakeInstallmentRepo struct {
	orders       map[string]*models.InstallmentOrder
	installments map[string]*models.Installment
}

func newFakeInstallmentRepo() *fakeInstallmentRepo {
	return &fakeInstallmentRepo{
		orders:       map[string]*models.InstallmentOrder{},
		installments: map[string]*models.Installment{},
	}
}

func (r *fakeInstallmentRepo) CreateOrder(_ context.Context, o *models.InstallmentOrder) error {
	r.orders[o.ID] = o
	return nil
}

func (r *fakeInstallmentRepo) GetOrder(_ context.Context, id string) (*models.InstallmentOrder, error) {
	if o, ok := r.orders[id]; ok {
		return o, nil
	}
	return nil, repositories.ErrOrderNotFound
}

func (r *fakeInstallmentRepo) ListOrders(_ context.Context, _, _ string, _, _ int) ([]models.InstallmentOrder, error) {
	return nil, nil
}

func (r *fakeInstallmentRepo) UpdateOrderStatus(_ context.Context, id, status string) error {
	o, ok := r.orders[id]
	if !ok {
		return repositories.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (r *fakeInstallmentRepo) CreateInstallments(_ context.Context, installments []*models.Installment) error {
	for _, i := range installments {
		r.installments[i.ID] = i
	}
	return nil
}

func (r *fakeInstallmentRepo) GetInstallment(_ context.Context, id string) (*models.Installment, error) {
	if i, ok := r.installments[id]; ok {
		return i, nil
	}
	return nil, repositories.ErrInstallmentNotFound
}

func (r *fakeInstallmentRepo) ListByOrder(_ context.Context, orderID string) ([]models.Installment, error) {
	var out []models.Installment
	for _, i := range r.installments {
		if i.OrderID == orderID {
			out = append(out, *i)
		}
	}
	return out, nil
}

func (r *fakeInstallmentRepo) ListDue(_ context.Context, _ time.Time, _ int) ([]models.Installment, error) {
	return nil, nil
}

func (r *fakeInstallmentRepo) Lease(_ context.Context, id string, expires time.Time) (*models.Installment, error) {
	i, ok := r.installments[id]
	if !ok {
		return nil, repositories.ErrInstallmentNotFound
	}
	i.Status = models.InstallmentStatusLeased
	i.LeaseExpiresAt = &expires
	return i, nil
}

func (r *fakeInstallmentRepo) Update(_ context.Context, i *models.Installment) error {
	clone := *i
	r.installments[i.ID] = &clone
	return nil
}

func (r *fakeInstallmentRepo) ReapExpiredLeases(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// fakeWalletService keeps one balance per customer and records debits as
// ledger entries keyed by charge reference.
type fakeWalletService struct {
	wallets    map[string]*models.Wallet
	entries    map[string]*models.WalletLedgerEntry
	debitCalls int
}

func newFakeWalletService() *fakeWalletService {
	return &fakeWalletService{
		wallets: map[string]*models.Wallet{},
		entries: map[string]*models.WalletLedgerEntry{},
	}
}

func (f *fakeWalletService) addWallet(customerID string, balance float64) *models.Wallet {
	w := &models.Wallet{
		ID:         "wallet-" + customerID,
		CustomerID: customerID,
		Balance:    balance,
		Currency:   "USD",
		Status:     models.WalletStatusActive,
	}
	f.wallets[customerID] = w
	return w
}

func (f *fakeWalletService) GetWallet(_ context.Context, customerID string) (*models.Wallet, error) {
	if w, ok := f.wallets[customerID]; ok {
		return w, nil
	}
	return nil, wallet.ErrWalletNotFound
}

func (f *fakeWalletService) Debit(_ context.Context, walletID string, amount float64, reference string) (*models.WalletLedgerEntry, error) {
	f.debitCalls++
	for _, w := range f.wallets {
		if w.ID != walletID {
			continue
		}
		if w.Balance < amount {
			return nil, wallet.ErrInsufficientFunds
		}
		w.Balance -= amount
		entry := &models.WalletLedgerEntry{
			WalletID: walletID,
			Amount:   -amount,
			Type:     models.LedgerEntryDebit,
			ChargeID: reference,
		}
		f.entries[reference] = entry
		return entry, nil
	}
	return nil, wallet.ErrWalletNotFound
}

func (f *fakeWalletService) FindEntryByReference(_ context.Context, chargeID string) (*models.WalletLedgerEntry, error) {
	if e, ok := f.entries[chargeID]; ok {
		return e, nil
	}
	return nil, wallet.ErrEntryNotFound
}

// fakeProcessor returns scripted results in order, repeating the last one.
type fakeProcessor struct {
	results []processor.Result
	errs    []error
	calls   int
	keys    []string
}

func (f *fakeProcessor) AuthorizeAndCapture(_ context.Context, _ float64, _, _, idempotencyKey string) (*processor.Result, error) {
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	f.keys = append(f.keys, idempotencyKey)
	if idx >= 0 && idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if idx < 0 {
		return nil, fmt.Errorf("no scripted result")
	}
	result := f.results[idx]
	return &result, nil
}

type fakeDispatcher struct {
	events []string
}

func (f *fakeDispatcher) Enqueue(_ context.Context, eventType string, _ *models.Charge) error {
	f.events = append(f.events, eventType)
	return nil
}

type fixture struct {
	charges      *fakeChargeRepo
	installments *fakeInstallmentRepo
	wallets      *fakeWalletService
	external     *fakeProcessor
	dispatcher   *fakeDispatcher
	service      Service
}

func newFixture(cfg Config, external *fakeProcessor) *fixture {
	f := &fixture{
		charges:      newFakeChargeRepo(),
		installments: newFakeInstallmentRepo(),
		wallets:      newFakeWalletService(),
		external:     external,
		dispatcher:   &fakeDispatcher{},
	}
	f.service = NewService(f.charges, f.installments, f.wallets, external, f.dispatcher, cfg, nil)
	return f
}

func (f *fixture) seedOrder(installmentAmounts ...float64) (*models.InstallmentOrder, []*models.Installment) {
	order := &models.InstallmentOrder{
		ID:         "order-1",
		CustomerID: "cust-1",
		Currency:   "USD",
		Status:     models.OrderStatusActive,
	}
	f.installments.orders[order.ID] = order

	var created []*models.Installment
	for i, amount := range installmentAmounts {
		installment := &models.Installment{
			ID:                fmt.Sprintf("inst-%d", i+1),
			OrderID:           order.ID,
			InstallmentNumber: i + 1,
			Amount:            amount,
			DueAt:             time.Now().Add(-time.Minute),
			Status:            models.InstallmentStatusLeased,
		}
		order.Amount += amount
		f.installments.installments[installment.ID] = installment
		created = append(created, installment)
	}
	order.InstallmentCount = len(installmentAmounts)
	return order, created
}

func TestProcessInstallment_WalletCoversFullAmount(t *testing.T) {
	f := newFixture(Config{}, &fakeProcessor{})
	f.wallets.addWallet("cust-1", 200)
	_, installments := f.seedOrder(100)

	chg, err := f.service.ProcessInstallment(context.Background(), installments[0])
	require.NoError(t, err)

	assert.Equal(t, models.ChargeStatusSucceeded, chg.Status)
	assert.Equal(t, models.PaymentMethodWallet, chg.PaymentMethod)
	assert.Equal(t, float64(100), f.wallets.wallets["cust-1"].Balance)
	assert.Zero(t, f.external.calls, "external processor must not be touched")
	assert.Equal(t, []string{models.EventChargeSucceeded}, f.dispatcher.events)

	stored, _ := f.installments.GetInstallment(context.Background(), "inst-1")
	assert.Equal(t, models.InstallmentStatusSucceeded, stored.Status)
}

func TestProcessInstallment_InsufficientBalanceFallsBackExternal(t *testing.T) {
	external := &fakeProcessor{results: []processor.Result{
		{Outcome: processor.OutcomeSucceeded, ExternalID: "ext-1"},
	}}
	f := newFixture(Config{}, external)
	f.wallets.addWallet("cust-1", 50)
	_, installments := f.seedOrder(100)

	chg, err := f.service.ProcessInstallment(context.Background(), installments[0])
	require.NoError(t, err)

	assert.Equal(t, models.ChargeStatusSucceeded, chg.Status)
	assert.Equal(t, models.PaymentMethodExternal, chg.PaymentMethod)
	assert.Equal(t, "ext-1", chg.ExternalChargeID)
	// The wallet is never partially drained.
	assert.Equal(t, float64(50), f.wallets.wallets["cust-1"].Balance)
	assert.Equal(t, 1, external.calls)
	assert.Equal(t, []string{InstallmentIdempotencyKey("inst-1", 0)}, external.keys)
}

func TestProcessInstallment_ReplayAfterSuccessHasNoNewEffects(t *testing.T) {
	f := newFixture(Config{}, &fakeProcessor{})
	f.wallets.addWallet("cust-1", 200)
	_, installments := f.seedOrder(100)

	first, err := f.service.ProcessInstallment(context.Background(), installments[0])
	require.NoError(t, err)

	replayed, err := f.service.ProcessInstallment(context.Background(), installments[0])
	require.NoError(t, err)

	assert.Equal(t, first.ID, replayed.ID)
	assert.Equal(t, 1, f.wallets.debitCalls, "replay must not debit again")
	assert.Equal(t, float64(100), f.wallets.wallets["cust-1"].Balance)
	assert.Len(t, f.dispatcher.events, 1, "replay must not enqueue another event")
}

func TestProcessInstallment_IndeterminateKeepsEpochAndCharge(t *testing.T) {
	external := &fakeProcessor{
		results: []processor.Result{{}},
		errs:    []error{fmt.Errorf("gateway timeout")},
	}
	f := newFixture(Config{}, external)
	_, installments := f.seedOrder(100)

	chg, err := f.service.ProcessInstallment(context.Background(), installments[0])
	require.NoError(t, err)

	assert.Equal(t, models.ChargeStatusPending, chg.Status)
	stored, _ := f.installments.GetInstallment(context.Background(), "inst-1")
	assert.Equal(t, models.InstallmentStatusRetryScheduled, stored.Status)
	assert.Zero(t, stored.AttemptEpoch, "indeterminate outcome must not mint a new epoch")
	assert.Zero(t, stored.AttemptCount, "indeterminate outcome must not consume an attempt")
	assert.Empty(t, f.dispatcher.events)
}

func TestProcessInstallment_RetryExhaustionEmitsOneFailure(t *testing.T) {
	external := &fakeProcessor{results: []processor.Result{
		{Outcome: processor.OutcomeFailed, Message: "card declined"},
	}}
	f := newFixture(Config{MaxAttempts: 3}, external)
	f.seedOrder(100, 100)

	for attempt := 0; attempt < 3; attempt++ {
		current, getErr := f.installments.GetInstallment(context.Background(), "inst-1")
		require.NoError(t, getErr)
		_, err := f.service.ProcessInstallment(context.Background(), current)
		require.NoError(t, err)
	}

	stored, _ := f.installments.GetInstallment(context.Background(), "inst-1")
	assert.Equal(t, models.InstallmentStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.AttemptCount)
	assert.Equal(t, 3, external.calls)

	// Every attempt used a distinct epoch and therefore a distinct key.
	seen := map[string]bool{}
	for _, key := range external.keys {
		assert.False(t, seen[key], "idempotency keys must differ across epochs")
		seen[key] = true
	}

	failures := 0
	for _, evt := range f.dispatcher.events {
		if evt == models.EventChargeFailed {
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one terminal failure event")

	// Without the grace policy the sibling installment is cancelled and the
	// order fails.
	sibling, _ := f.installments.GetInstallment(context.Background(), "inst-2")
	assert.Equal(t, models.InstallmentStatusCancelled, sibling.Status)
	order, _ := f.installments.GetOrder(context.Background(), "order-1")
	assert.Equal(t, models.OrderStatusFailed, order.Status)
}

func TestProcessInstallment_KeyConflictOnAmountMismatch(t *testing.T) {
	f := newFixture(Config{}, &fakeProcessor{})
	_, installments := f.seedOrder(100)

	key := InstallmentIdempotencyKey("inst-1", 0)
	require.NoError(t, f.charges.Create(context.Background(), &models.Charge{
		CustomerID:     "cust-1",
		Amount:         42,
		Status:         models.ChargeStatusSucceeded,
		IdempotencyKey: key,
	}))

	_, err := f.service.ProcessInstallment(context.Background(), installments[0])
	assert.ErrorIs(t, err, ErrKeyConflict)
}

func TestCreateCharge_SplitValidationBeforeSideEffects(t *testing.T) {
	external := &fakeProcessor{results: []processor.Result{
		{Outcome: processor.OutcomeSucceeded, ExternalID: "ext-1"},
	}}
	f := newFixture(Config{}, external)

	_, err := f.service.CreateCharge(context.Background(), Request{
		CustomerID: "cust-1",
		Amount:     50,
		SplitInstructions: models.SplitInstructions{
			{Recipient: "a", Amount: 30},
			{Recipient: "b", Amount: 30},
		},
		IdempotencyKey: "bad-split",
	})
	assert.ErrorIs(t, err, ErrInvalidSplit)
	assert.Zero(t, external.calls, "rejected split must not reach the processor")
	assert.Empty(t, f.charges.byID, "rejected split must not persist a charge")

	chg, err := f.service.CreateCharge(context.Background(), Request{
		CustomerID: "cust-1",
		Amount:     50,
		SplitInstructions: models.SplitInstructions{
			{Recipient: "a", Amount: 30},
			{Recipient: "b", Amount: 20},
		},
		IdempotencyKey: "good-split",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChargeStatusSucceeded, chg.Status)
}

func TestCreateCharge_ReplayReturnsOriginal(t *testing.T) {
	external := &fakeProcessor{results: []processor.Result{
		{Outcome: processor.OutcomeSucceeded, ExternalID: "ext-1"},
	}}
	f := newFixture(Config{}, external)

	req := Request{CustomerID: "cust-1", Amount: 75, IdempotencyKey: "replay-key"}
	first, err := f.service.CreateCharge(context.Background(), req)
	require.NoError(t, err)

	replayed, err := f.service.CreateCharge(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, replayed.ID)
	assert.Equal(t, 1, external.calls, "replay must not re-capture")
}
