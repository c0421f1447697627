// Package orders manages installment payment plans. An order splits a total
// into equal installments on a 30-day cadence; the last installment absorbs
// rounding so the schedule sums exactly to the order amount.
package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"payflow/internal/models"
	"payflow/internal/repositories"
)

// installmentInterval is the spacing between consecutive due dates.
const installmentInterval = 30 * 24 * time.Hour

type service struct {
	repo repositories.InstallmentRepository
	now  func() time.Time
}

// NewService creates an order service backed by the given repository.
func NewService(repo repositories.InstallmentRepository) Service {
	if repo == nil {
		panic("installment repository is required")
	}
	return &service{repo: repo, now: time.Now}
}

// CreateOrder validates the plan, persists the order in pending status, and
// creates its installment schedule. Installments become schedulable only
// after activation.
func (s *service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.InstallmentOrder, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.InstallmentCount <= 0 {
		return nil, ErrInvalidCount
	}
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}
	firstDue := req.FirstDueAt
	if firstDue.IsZero() {
		firstDue = s.now()
	}

	perInstallment := roundCents(req.Amount / float64(req.InstallmentCount))

	order := &models.InstallmentOrder{
		CustomerID:          req.CustomerID,
		Amount:              req.Amount,
		Currency:            currency,
		InstallmentCount:    req.InstallmentCount,
		InstallmentAmount:   perInstallment,
		Status:              models.OrderStatusPending,
		AllowPartialFailure: req.AllowPartialFailure,
	}
	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	installments := buildSchedule(order, firstDue)
	if err := s.repo.CreateInstallments(ctx, installments); err != nil {
		return nil, fmt.Errorf("failed to create installment schedule: %w", err)
	}
	for _, installment := range installments {
		order.Installments = append(order.Installments, *installment)
	}
	return order, nil
}

// buildSchedule produces the installment rows. The final installment carries
// the rounding remainder so the sum matches the order amount exactly.
func buildSchedule(order *models.InstallmentOrder, firstDue time.Time) []*models.Installment {
	installments := make([]*models.Installment, 0, order.InstallmentCount)
	allocated := 0.0
	for i := 0; i < order.InstallmentCount; i++ {
		amount := order.InstallmentAmount
		if i == order.InstallmentCount-1 {
			amount = roundCents(order.Amount - allocated)
		}
		allocated += amount
		installments = append(installments, &models.Installment{
			OrderID:           order.ID,
			InstallmentNumber: i + 1,
			Amount:            amount,
			DueAt:             firstDue.Add(time.Duration(i) * installmentInterval),
			Status:            models.InstallmentStatusPending,
		})
	}
	return installments
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// ActivateOrder moves a pending order to active, releasing its installments
// to the scheduler.
func (s *service) ActivateOrder(ctx context.Context, orderID string) (*models.InstallmentOrder, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: status is %s", ErrNotActivatable, order.Status)
	}
	if err := s.repo.UpdateOrderStatus(ctx, orderID, models.OrderStatusActive); err != nil {
		return nil, fmt.Errorf("failed to activate order: %w", err)
	}
	order.Status = models.OrderStatusActive
	return order, nil
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*models.InstallmentOrder, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, customerID, status string, limit, offset int) ([]models.InstallmentOrder, error) {
	return s.repo.ListOrders(ctx, customerID, status, limit, offset)
}

func (s *service) ListInstallments(ctx context.Context, orderID string) ([]models.Installment, error) {
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.ListByOrder(ctx, orderID)
}

func (s *service) GetInstallment(ctx context.Context, id string) (*models.Installment, error) {
	installment, err := s.repo.GetInstallment(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrInstallmentNotFound) {
			return nil, ErrInstallmentNotFound
		}
		return nil, err
	}
	return installment, nil
}

func (s *service) ListDueInstallments(ctx context.Context, now time.Time, limit int) ([]models.Installment, error) {
	return s.repo.ListDue(ctx, now, limit)
}
