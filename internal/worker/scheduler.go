package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// JobScheduler runs its jobs on a fixed interval until stopped. It is
// process-wide background state with an explicit lifecycle: Run blocks
// until the context is canceled or Stop is called.
type JobScheduler struct {
	Name     string
	interval time.Duration
	jobs     []Job
	stop     chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex
}

func NewJobScheduler(name string, interval time.Duration) *JobScheduler {
	return &JobScheduler{
		Name:     name,
		interval: interval,
		jobs:     make([]Job, 0),
		stop:     make(chan struct{}),
	}
}

func (s *JobScheduler) AddJob(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

func (s *JobScheduler) Run(ctx context.Context) {
	slog.Info("scheduler running", "scheduler", s.Name, "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runJobs(ctx)
		case <-ctx.Done():
			slog.Info("scheduler shutting down", "scheduler", s.Name)
			return
		case <-s.stop:
			slog.Info("scheduler stopped", "scheduler", s.Name)
			return
		}
	}
}

// Stop ends the Run loop. Safe to call more than once.
func (s *JobScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
}

func (s *JobScheduler) runJobs(ctx context.Context) {
	s.mu.RLock()
	jobsToRun := make([]Job, len(s.jobs))
	copy(jobsToRun, s.jobs)
	s.mu.RUnlock()

	for _, job := range jobsToRun {
		jobCtx, cancel := context.WithTimeout(ctx, s.interval)
		if err := job(jobCtx); err != nil {
			slog.Error("scheduled job failed", "scheduler", s.Name, "error", err)
		}
		cancel()
	}
}
