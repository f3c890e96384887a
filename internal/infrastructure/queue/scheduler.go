package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/issuetracker/issues-api/internal/core/ports"
)

// Enqueuer accepts jobs for asynchronous execution.
type Enqueuer interface {
	Enqueue(job ports.Job) error
}

type entry struct {
	job      ports.Job
	interval time.Duration
}

// Scheduler enqueues registered jobs on fixed intervals.
type Scheduler struct {
	target  Enqueuer
	entries []entry
	log     zerolog.Logger
}

func NewScheduler(target Enqueuer, log zerolog.Logger) *Scheduler {
	return &Scheduler{target: target, log: log}
}

// Every registers job to be enqueued once per interval. Non-positive
// intervals are ignored.
func (s *Scheduler) Every(interval time.Duration, job ports.Job) {
	if interval <= 0 {
		s.log.Warn().Str("job", job.Name).Msg("job not scheduled, interval must be positive")
		return
	}
	s.entries = append(s.entries, entry{job: job, interval: interval})
}

// Run blocks until ctx is cancelled. Each job is enqueued once at start
// and then on every tick.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	wg.Wait()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	s.log.Info().Str("job", e.job.Name).Dur("interval", e.interval).Msg("job scheduled")
	_ = s.target.Enqueue(e.job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.target.Enqueue(e.job)
		}
	}
}
