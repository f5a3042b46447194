package payroll

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// StaleRecomputer is the batch job run on every scheduler tick.
type StaleRecomputer interface {
	RecomputeStalePeriods(ctx context.Context) (int, error)
}

// Scheduler periodically recomputes payroll periods flagged by new time entries.
type Scheduler struct {
	job      StaleRecomputer
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(job StaleRecomputer, interval time.Duration) *Scheduler {
	return &Scheduler{job: job, interval: interval}
}

// Start runs the job once immediately and then on every tick until Stop is called.
// Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
	log.Infof("[Scheduler] Started payroll recompute with interval %v", s.interval)
}

// Stop cancels a running job and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	log.Info("[Scheduler] Stopped")
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	count, err := s.job.RecomputeStalePeriods(ctx)
	if err != nil {
		log.Errorf("[Scheduler] payroll recompute finished with errors: %v", err)
	}
	if count > 0 {
		log.Infof("[Scheduler] recomputed %d payroll period(s)", count)
	}
}
