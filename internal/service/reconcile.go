package service

import (
	"context"
	"time"
)

// Reconcile marks runs left in running by a crashed process as abandoned:
// any running run dated before today, or started longer than StaleRunAfter ago.
func (s *Service) Reconcile(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.markStale(ctx)
}

func (s *Service) markStale(ctx context.Context) (int64, error) {
	now := s.now()
	var startedBefore time.Time
	if s.config.StaleRunAfter > 0 {
		startedBefore = now.Add(-s.config.StaleRunAfter)
	}
	n, err := s.store.MarkStaleRuns(ctx, s.config.Today(now), startedBefore)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("marked stale runs as abandoned", "count", n)
	}
	return n, nil
}

// RunStaleRunMonitor sweeps for stale runs until ctx is done.
func (s *Service) RunStaleRunMonitor(ctx context.Context) {
	interval := s.config.StaleSweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStaleRuns(ctx)
		}
	}
}

// sweepStaleRuns skips the sweep while a run is in progress in this process.
func (s *Service) sweepStaleRuns(ctx context.Context) {
	if !s.mu.TryLock() {
		return
	}
	defer s.mu.Unlock()

	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.markStale(sweepCtx); err != nil {
		s.log.Warn("stale run sweep failed", "error", err)
	}
}
