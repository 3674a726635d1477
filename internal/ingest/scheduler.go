package ingest

import (
	"context"
	"time"
)

// Scheduler triggers ingestion runs on a fixed interval, starting with an
// immediate run.
type Scheduler struct {
	interval time.Duration
	stop     chan struct{}
}

// NewScheduler builds a scheduler; interval must be positive.
func NewScheduler(interval time.Duration) *Scheduler {
	return &Scheduler{interval: interval}
}

// Start launches the ticking goroutine. A nil job, a non-positive interval or
// a second Start is a no-op.
func (s *Scheduler) Start(ctx context.Context, job func(context.Context)) {
	if job == nil || s.interval <= 0 || s.stop != nil {
		return
	}

	s.stop = make(chan struct{})
	stop := s.stop
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		job(ctx)
		for {
			select {
			case <-ticker.C:
				job(ctx)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the ticking goroutine.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
}
