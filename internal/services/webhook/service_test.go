package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflow/internal/models"
	"payflow/internal/repositories"
)

type fakeWebhookRepo struct {
	mu   sync.Mutex
	logs map[string]*models.WebhookLog
	seq  int
}

func newFakeWebhookRepo() *fakeWebhookRepo {
	return &fakeWebhookRepo{logs: map[string]*models.WebhookLog{}}
}

func (r *fakeWebhookRepo) Create(_ context.Context, l *models.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == "" {
		r.seq++
		l.ID = "log-" + string(rune('a'+r.seq-1))
	}
	clone := *l
	r.logs[l.ID] = &clone
	return nil
}

func (r *fakeWebhookRepo) GetByID(_ context.Context, id string) (*models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.logs[id]; ok {
		clone := *l
		return &clone, nil
	}
	return nil, repositories.ErrWebhookLogNotFound
}

func (r *fakeWebhookRepo) List(_ context.Context, status string, _, _ int) ([]models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.WebhookLog
	for _, l := range r.logs {
		if status == "" || l.Status == status {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *fakeWebhookRepo) ListDue(_ context.Context, now time.Time, limit int) ([]models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []models.WebhookLog
	for _, l := range r.logs {
		if len(due) >= limit {
			break
		}
		if l.Status != models.WebhookStatusPending {
			continue
		}
		if l.NextAttemptAt == nil || !l.NextAttemptAt.After(now) {
			due = append(due, *l)
		}
	}
	return due, nil
}

func (r *fakeWebhookRepo) Claim(_ context.Context, id string, expires time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.logs[id]
	if !ok {
		return repositories.ErrWebhookLogNotFound
	}
	if l.Status != models.WebhookStatusPending {
		return repositories.ErrWebhookClaimed
	}
	l.Status = models.WebhookStatusDelivering
	l.LeaseExpiresAt = &expires
	return nil
}

func (r *fakeWebhookRepo) Update(_ context.Context, l *models.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *l
	r.logs[l.ID] = &clone
	return nil
}

func (r *fakeWebhookRepo) ReapExpiredLeases(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, l := range r.logs {
		if l.Status == models.WebhookStatusDelivering && l.LeaseExpiresAt != nil && !l.LeaseExpiresAt.After(now) {
			l.Status = models.WebhookStatusPending
			l.LeaseExpiresAt = nil
			count++
		}
	}
	return count, nil
}

func testCharge() *models.Charge {
	return &models.Charge{
		ID:            "charge-1",
		CustomerID:    "cust-1",
		InstallmentID: "inst-1",
		OrderID:       "order-1",
		Amount:        100,
		Currency:      "USD",
		Status:        models.ChargeStatusSucceeded,
		PaymentMethod: models.PaymentMethodWallet,
		CreatedAt:     time.Now(),
	}
}

func TestEnqueue_WritesOneLogPerTarget(t *testing.T) {
	repo := newFakeWebhookRepo()
	d := NewDispatcher(repo, Config{Targets: []string{"http://a.example", "http://b.example"}}, nil)

	require.NoError(t, d.Enqueue(context.Background(), models.EventChargeSucceeded, testCharge()))

	logs, err := repo.List(context.Background(), models.WebhookStatusPending, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	targets := map[string]bool{}
	for _, l := range logs {
		targets[l.TargetURL] = true
		assert.Equal(t, models.EventChargeSucceeded, l.EventType)
		assert.Equal(t, "charge-1", l.Payload["charge_id"])
		metadata, ok := l.Payload["metadata"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "inst-1", metadata["installment_id"])
		assert.Equal(t, "order-1", metadata["order_id"])
	}
	assert.Len(t, targets, 2)
}

func TestDelivery_RetriesWithGrowingBackoffThenSucceeds(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "charge-1", payload["charge_id"])

		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	d := NewDispatcher(repo, Config{
		Targets:     []string{server.URL},
		BackoffBase: time.Minute,
		BackoffCap:  time.Hour,
	}, nil)
	require.NoError(t, d.Enqueue(context.Background(), models.EventChargeSucceeded, testCharge()))

	var gaps []time.Duration
	for i := 0; i < 3; i++ {
		// The fake clock jumps past the scheduled retry time so each RunOnce
		// sees the entry as due.
		logs, _ := repo.List(context.Background(), "", 10, 0)
		require.Len(t, logs, 1)
		if logs[0].NextAttemptAt != nil {
			next := logs[0].NextAttemptAt.Add(time.Second)
			d.now = func() time.Time { return next }
		}

		_, err := d.RunOnce(context.Background())
		require.NoError(t, err)

		logs, _ = repo.List(context.Background(), "", 10, 0)
		if logs[0].NextAttemptAt != nil && logs[0].LastAttemptAt != nil {
			gaps = append(gaps, logs[0].NextAttemptAt.Sub(*logs[0].LastAttemptAt))
		}
	}

	logs, err := repo.List(context.Background(), "", 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.WebhookStatusDelivered, logs[0].Status)
	assert.Equal(t, 3, logs[0].AttemptCount)
	assert.Empty(t, logs[0].LastError)

	require.Len(t, gaps, 2)
	assert.Greater(t, gaps[1], gaps[0], "backoff gaps must strictly grow")
}

func TestDelivery_ExhaustsAfterMaxAttempts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	d := NewDispatcher(repo, Config{
		Targets:     []string{server.URL},
		MaxAttempts: 2,
		BackoffBase: time.Millisecond,
	}, nil)
	require.NoError(t, d.Enqueue(context.Background(), models.EventChargeFailed, testCharge()))

	for i := 0; i < 2; i++ {
		logs, _ := repo.List(context.Background(), "", 10, 0)
		require.Len(t, logs, 1)
		if logs[0].NextAttemptAt != nil {
			next := logs[0].NextAttemptAt.Add(time.Second)
			d.now = func() time.Time { return next }
		}
		_, err := d.RunOnce(context.Background())
		require.NoError(t, err)
	}

	logs, err := repo.List(context.Background(), "", 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.WebhookStatusExhausted, logs[0].Status)
	assert.Equal(t, 2, logs[0].AttemptCount)
	assert.Contains(t, logs[0].LastError, "503")

	// Exhausted entries never come back as due.
	delivered, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
}

func TestSignedRequestsCarryAuthorization(t *testing.T) {
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newFakeWebhookRepo()
	d := NewDispatcher(repo, Config{
		Targets:       []string{server.URL},
		SigningSecret: "test-secret",
	}, nil)
	require.NoError(t, d.Enqueue(context.Background(), models.EventChargeSucceeded, testCharge()))

	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Contains(t, authHeader, "Bearer ")
}
