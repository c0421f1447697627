package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflow/internal/models"
	"payflow/internal/repositories"
)

type fakeInstallmentRepo struct {
	mu           sync.Mutex
	installments map[string]*models.Installment
	reaped       int64
}

func newFakeInstallmentRepo() *fakeInstallmentRepo {
	return &fakeInstallmentRepo{installments: map[string]*models.Installment{}}
}

func (r *fakeInstallmentRepo) add(id string, status string, due time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.installments[id] = &models.Installment{
		ID:      id,
		OrderID: "order-1",
		Amount:  100,
		DueAt:   due,
		Status:  status,
	}
}

func (r *fakeInstallmentRepo) CreateOrder(context.Context, *models.InstallmentOrder) error { return nil }

func (r *fakeInstallmentRepo) GetOrder(context.Context, string) (*models.InstallmentOrder, error) {
	return nil, repositories.ErrOrderNotFound
}

func (r *fakeInstallmentRepo) ListOrders(context.Context, string, string, int, int) ([]models.InstallmentOrder, error) {
	return nil, nil
}

func (r *fakeInstallmentRepo) UpdateOrderStatus(context.Context, string, string) error { return nil }

func (r *fakeInstallmentRepo) CreateInstallments(context.Context, []*models.Installment) error {
	return nil
}

func (r *fakeInstallmentRepo) GetInstallment(_ context.Context, id string) (*models.Installment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.installments[id]; ok {
		clone := *i
		return &clone, nil
	}
	return nil, repositories.ErrInstallmentNotFound
}

func (r *fakeInstallmentRepo) ListByOrder(context.Context, string) ([]models.Installment, error) {
	return nil, nil
}

func (r *fakeInstallmentRepo) ListDue(_ context.Context, now time.Time, limit int) ([]models.Installment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []models.Installment
	for _, i := range r.installments {
		if len(due) >= limit {
			break
		}
		if i.Status == models.InstallmentStatusPending && !i.DueAt.After(now) {
			due = append(due, *i)
		}
	}
	return due, nil
}

func (r *fakeInstallmentRepo) Lease(_ context.Context, id string, expires time.Time) (*models.Installment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.installments[id]
	if !ok {
		return nil, repositories.ErrInstallmentNotFound
	}
	if i.Status != models.InstallmentStatusPending && i.Status != models.InstallmentStatusRetryScheduled {
		return nil, repositories.ErrLeaseConflict
	}
	i.LeasePriorStatus = i.Status
	i.Status = models.InstallmentStatusLeased
	i.LeaseExpiresAt = &expires
	clone := *i
	return &clone, nil
}

func (r *fakeInstallmentRepo) Update(_ context.Context, installment *models.Installment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *installment
	r.installments[installment.ID] = &clone
	return nil
}

func (r *fakeInstallmentRepo) ReapExpiredLeases(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, i := range r.installments {
		leased := i.Status == models.InstallmentStatusLeased || i.Status == models.InstallmentStatusProcessing
		if leased && i.LeaseExpiresAt != nil && !i.LeaseExpiresAt.After(now) {
			i.Status = i.LeasePriorStatus
			i.LeasePriorStatus = ""
			i.LeaseExpiresAt = nil
			count++
		}
	}
	r.reaped += count
	return count, nil
}

// countingProcessor records how many times each installment reached it.
type countingProcessor struct {
	mu   sync.Mutex
	seen map[string]int
}

func newCountingProcessor() *countingProcessor {
	return &countingProcessor{seen: map[string]int{}}
}

func (p *countingProcessor) ProcessInstallment(_ context.Context, installment *models.Installment) (*models.Charge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[installment.ID]++
	return &models.Charge{ID: "charge-" + installment.ID}, nil
}

func TestRunOnce_ProcessesEachDueInstallmentOnce(t *testing.T) {
	repo := newFakeInstallmentRepo()
	proc := newCountingProcessor()
	for i := 0; i < 5; i++ {
		repo.add(fmt.Sprintf("inst-%d", i), models.InstallmentStatusPending, time.Now().Add(-time.Minute))
	}
	repo.add("inst-future", models.InstallmentStatusPending, time.Now().Add(time.Hour))

	s := New(repo, proc, Config{})
	processed, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, processed)
	assert.Len(t, proc.seen, 5)
	for id, count := range proc.seen {
		assert.Equal(t, 1, count, "installment %s processed more than once", id)
	}
	assert.NotContains(t, proc.seen, "inst-future")
}

func TestRunOnce_ConcurrentSchedulersShareWorkWithoutDoubleProcessing(t *testing.T) {
	repo := newFakeInstallmentRepo()
	proc := newCountingProcessor()
	for i := 0; i < 20; i++ {
		repo.add(fmt.Sprintf("inst-%d", i), models.InstallmentStatusPending, time.Now().Add(-time.Minute))
	}

	a := New(repo, proc, Config{})
	b := New(repo, proc, Config{})

	var wg sync.WaitGroup
	totals := make([]int, 2)
	for idx, s := range []*Scheduler{a, b} {
		wg.Add(1)
		go func(idx int, s *Scheduler) {
			defer wg.Done()
			n, err := s.RunOnce(context.Background())
			assert.NoError(t, err)
			totals[idx] = n
		}(idx, s)
	}
	wg.Wait()

	assert.Equal(t, 20, totals[0]+totals[1], "every installment processed exactly once across schedulers")
	for id, count := range proc.seen {
		assert.Equal(t, 1, count, "installment %s processed more than once", id)
	}
}

func TestLease_CannotBeTakenTwice(t *testing.T) {
	repo := newFakeInstallmentRepo()
	repo.add("inst-1", models.InstallmentStatusPending, time.Now().Add(-time.Minute))

	_, err := repo.Lease(context.Background(), "inst-1", time.Now().Add(time.Minute))
	require.NoError(t, err)

	_, err = repo.Lease(context.Background(), "inst-1", time.Now().Add(time.Minute))
	assert.ErrorIs(t, err, repositories.ErrLeaseConflict)
}

func TestReaper_RestoresPriorStatusAfterExpiry(t *testing.T) {
	repo := newFakeInstallmentRepo()
	repo.add("inst-1", models.InstallmentStatusRetryScheduled, time.Now().Add(-time.Minute))

	_, err := repo.Lease(context.Background(), "inst-1", time.Now().Add(-time.Second))
	require.NoError(t, err)

	reaped, err := repo.ReapExpiredLeases(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), reaped)

	restored, err := repo.GetInstallment(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, models.InstallmentStatusRetryScheduled, restored.Status)
	assert.Nil(t, restored.LeaseExpiresAt)
}
