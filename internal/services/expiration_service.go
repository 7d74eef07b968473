package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ExpirationService is the sweeper that moves overdue active policies to
// Expired. Each sweep is one set-based conditional update in the store;
// re-running with nothing newly overdue is a no-op.
type ExpirationService struct {
	policies PolicyStore
	stats    *SweepStats
}

// SweepStats tracks sweeper runs for the health endpoint.
type SweepStats struct {
	TotalRuns    int64
	TotalExpired int64
	FailedRuns   int64
	LastRun      time.Time
	mu           sync.RWMutex
}

func NewExpirationService(policies PolicyStore) *ExpirationService {
	return &ExpirationService{
		policies: policies,
		stats: &SweepStats{
			LastRun: time.Now(),
		},
	}
}

// Sweep performs one expiration pass and returns how many policies it
// transitioned.
func (s *ExpirationService) Sweep(ctx context.Context) (int64, error) {
	expired, err := s.policies.ExpireDue(ctx, time.Now())

	s.stats.mu.Lock()
	s.stats.TotalRuns++
	s.stats.LastRun = time.Now()
	if err != nil {
		s.stats.FailedRuns++
	} else {
		s.stats.TotalExpired += expired
	}
	s.stats.mu.Unlock()

	if err != nil {
		slog.Error("expiration sweep failed", "error", err)
		return 0, err
	}

	if expired > 0 {
		slog.Info("expiration sweep completed", "expired", expired)
	}
	return expired, nil
}

// Job adapts the sweep to the worker scheduler.
func (s *ExpirationService) Job() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	}
}

func (s *ExpirationService) GetStats() SweepStats {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()
	return SweepStats{
		TotalRuns:    s.stats.TotalRuns,
		TotalExpired: s.stats.TotalExpired,
		FailedRuns:   s.stats.FailedRuns,
		LastRun:      s.stats.LastRun,
	}
}

// HealthCheck reports an unhealthy sweeper: stalled for over ten minutes,
// or failing more than half of its runs.
func (s *ExpirationService) HealthCheck() error {
	stats := s.GetStats()

	if stats.TotalRuns > 0 && time.Since(stats.LastRun) > 10*time.Minute {
		return fmt.Errorf("no sweep in last 10 minutes")
	}

	if stats.TotalRuns > 0 {
		failureRate := float64(stats.FailedRuns) / float64(stats.TotalRuns)
		if failureRate > 0.5 {
			return fmt.Errorf("high sweep failure rate: %.1f%%", failureRate*100)
		}
	}

	return nil
}
