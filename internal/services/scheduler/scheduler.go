// Package scheduler polls for due installments, leases each one to exactly
// one worker for a bounded window, and hands leased work to the charge
// processor. A reaper returns expired leases to the pool so crashed workers
// never strand an installment.
package scheduler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"payflow/internal/models"
	"payflow/internal/repositories"
)

// Default scheduling configuration
const (
	DefaultPollInterval  = 10 * time.Second
	DefaultLeaseDuration = 2 * time.Minute
	DefaultBatchSize     = 50
	DefaultConcurrency   = 8
)

// ChargeProcessor is the slice of the charge service the scheduler drives.
type ChargeProcessor interface {
	ProcessInstallment(ctx context.Context, installment *models.Installment) (*models.Charge, error)
}

// Config holds scheduler settings.
type Config struct {
	PollInterval  time.Duration
	LeaseDuration time.Duration
	BatchSize     int
	Concurrency   int
}

// Scheduler runs the due-installment polling loop.
type Scheduler struct {
	repo      repositories.InstallmentRepository
	processor ChargeProcessor
	cfg       Config
	now       func() time.Time
}

func New(repo repositories.InstallmentRepository, processor ChargeProcessor, cfg Config) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.LeaseDuration <= 0 {
		cfg.LeaseDuration = DefaultLeaseDuration
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Scheduler{
		repo:      repo,
		processor: processor,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run blocks until ctx is cancelled, scanning for due work every poll
// interval and reaping expired leases between scans.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("scheduler started (poll=%s lease=%s)", s.cfg.PollInterval, s.cfg.LeaseDuration)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("scheduler stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			if reaped, err := s.repo.ReapExpiredLeases(ctx, s.now()); err != nil {
				log.Printf("lease reaper failed: %v", err)
			} else if reaped > 0 {
				log.Printf("reaper returned %d expired leases to the pool", reaped)
			}
			if _, err := s.RunOnce(ctx); err != nil {
				log.Printf("scheduler scan failed: %v", err)
			}
		}
	}
}

// RunOnce performs a single scan-lease-process cycle and returns the number
// of installments this scheduler actually processed. Installments lost to a
// concurrent scheduler are skipped silently.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	due, err := s.repo.ListDue(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(due) == 0 {
		return 0, nil
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		processed int
	)
	sem := make(chan struct{}, s.cfg.Concurrency)

	for i := range due {
		candidate := due[i]

		leased, err := s.repo.Lease(ctx, candidate.ID, s.now().Add(s.cfg.LeaseDuration))
		if err != nil {
			if errors.Is(err, repositories.ErrLeaseConflict) {
				// Another worker owns it; benign.
				continue
			}
			log.Printf("failed to lease installment %s: %v", candidate.ID, err)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(installment *models.Installment) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.process(ctx, installment); err != nil {
				log.Printf("failed to process installment %s: %v", installment.ID, err)
				return
			}
			mu.Lock()
			processed++
			mu.Unlock()
		}(leased)
	}

	wg.Wait()
	return processed, nil
}

func (s *Scheduler) process(ctx context.Context, installment *models.Installment) error {
	installment.Status = models.InstallmentStatusProcessing
	if err := s.repo.Update(ctx, installment); err != nil {
		return err
	}
	_, err := s.processor.ProcessInstallment(ctx, installment)
	return err
}
